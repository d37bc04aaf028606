package summary

import (
	"fmt"

	"github.com/soyoon/studylog/internal/aggregate"
)

// BuildPrompt は週次統計から要約生成用プロンプトを組み立てる。
// 生成されるフィードバックの言語・構成はプロンプト側で指定する。
func BuildPrompt(stats *WeekStats) string {
	return fmt.Sprintf(`당신은 학생의 학습 플래너 데이터를 분석하여
개인 맞춤형 피드백을 제공하는 AI 교육 코치입니다.

학생 이름: %s
분석 기간: %s ~ %s

[학습 통계 요약]
- 총 공부시간: %d분
- 하루 평균: %d분
- 계획 이행률: %d%%
- 과목별 비중: %s
- 요일별 집중 패턴: %s
- 시간대별 집중도: %s
- 루틴 안정성 지수(연속 학습일수 기반): %d

[작성 지침]
1️⃣ 학생의 루틴, 집중시간대, 과목 균형을 종합적으로 분석하세요.
2️⃣ 학습량, 실천력, 집중패턴 측면에서 강점과 약점을 명확히 기술하세요.
3️⃣ 루틴 안정성과 시간대 패턴을 고려하여, 다음 주를 위한 구체적 개선 조언을 제시하세요.
4️⃣ 피드백은 아래 3단 구성으로 작성하세요.
   - 🔹 학습 요약 (객관적 분석)
   - 🔹 개선 포인트 (구체적 행동 제안)
   - 🔹 격려 멘트 (동기부여 중심)
5️⃣ 글은 5문장 이내로 작성하되, 현실적이고 따뜻한 어조로 표현하세요.
6️⃣ 무조건적인 칭찬 대신 실질적 피드백을 포함하세요.`,
		stats.StudentName,
		stats.WeekStart.In(aggregate.LocationKST).Format("1월 2일"),
		stats.WeekEnd.In(aggregate.LocationKST).Format("1월 2일"),
		stats.TotalMinutes,
		stats.AvgPerDayMinutes,
		stats.PlanAchievementPercent,
		stats.SubjectRatios,
		stats.DayPattern,
		stats.HourPattern,
		stats.ConsistencyScore,
	)
}
