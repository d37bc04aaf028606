// Package export は学習記録のExcelエクスポートを提供する。
// .xlsx をbytes.Bufferで返し、HTTPレスポンスヘッダーの設定はハンドラー層が行う。
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/soyoon/studylog/internal/aggregate"
	"github.com/soyoon/studylog/internal/repository"
)

// ErrNoSessions はエクスポート対象期間にセッションが存在しないことを表す。
var ErrNoSessions = errors.New("エクスポート対象のセッションがありません")

const (
	sheetSessions = "세션"       // セッション明細シート
	sheetSubjects = "과목별 합계" // 科目別合計シート
)

// Service は学習記録のExcelエクスポートサービス。
type Service struct {
	sessionRepo repository.SessionRepository
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(sessionRepo repository.SessionRepository, logger *slog.Logger) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

// ExportSessions は期間 [from, to) のセッションを.xlsxに書き出す。
// シート1: セッション明細（開始時刻昇順）。シート2: 科目別合計（時間降順）。
// 戻り値はExcel内容、推奨ファイル名、エラー。
func (s *Service) ExportSessions(ctx context.Context, userID string, from, to time.Time) (*bytes.Buffer, string, error) {
	sessions, err := s.sessionRepo.ListOverlapping(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("エクスポート対象セッションの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	valid := sessions[:0:0]
	for _, sess := range sessions {
		if sess.Valid() {
			valid = append(valid, sess)
		}
	}
	if len(valid) == 0 {
		return nil, "", ErrNoSessions
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetSessions)
	if err != nil {
		return nil, "", fmt.Errorf("シートの作成に失敗しました: %w", err)
	}
	f.SetActiveSheet(idx)
	if _, err := f.NewSheet(sheetSubjects); err != nil {
		return nil, "", fmt.Errorf("シートの作成に失敗しました: %w", err)
	}
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetSessions, "A", "A", 12)
	f.SetColWidth(sheetSessions, "B", "B", 16)
	f.SetColWidth(sheetSessions, "C", "D", 10)
	f.SetColWidth(sheetSessions, "E", "E", 10)
	f.SetColWidth(sheetSubjects, "A", "A", 16)
	f.SetColWidth(sheetSubjects, "B", "B", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// セッション明細シート
	headers := []string{"날짜", "과목", "시작", "종료", "시간(분)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetSessions, cell, h)
		f.SetCellStyle(sheetSessions, cell, cell, headerStyle)
	}

	subjectMinutes := make(map[string]int)
	for i, sess := range valid {
		row := i + 2
		start := sess.ActualStart.In(aggregate.LocationKST)
		end := sess.ActualEnd.In(aggregate.LocationKST)
		subject := sess.Subject
		if subject == "" {
			subject = aggregate.SubjectUnspecified
		}
		minutes := sess.Minutes()
		subjectMinutes[subject] += minutes

		setRow(f, sheetSessions, row,
			start.Format("2006-01-02"),
			subject,
			start.Format("15:04"),
			end.Format("15:04"),
			minutes,
		)
	}

	// 科目別合計シート
	for i, h := range []string{"과목", "합계(분)"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetSubjects, cell, h)
		f.SetCellStyle(sheetSubjects, cell, cell, headerStyle)
	}

	type subjectTotal struct {
		subject string
		minutes int
	}
	totals := make([]subjectTotal, 0, len(subjectMinutes))
	for subj, min := range subjectMinutes {
		totals = append(totals, subjectTotal{subj, min})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].minutes != totals[j].minutes {
			return totals[i].minutes > totals[j].minutes
		}
		return totals[i].subject < totals[j].subject
	})
	for i, st := range totals {
		setRow(f, sheetSubjects, i+2, st.subject, st.minutes)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("Excelファイルの書き込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("Excelファイルの生成に失敗しました: %w", err)
	}

	// ファイル名には期間の最終日（包含）を表示する。
	filename := fmt.Sprintf("studylog_sessions_%s_%s.xlsx",
		from.In(aggregate.LocationKST).Format("2006-01-02"),
		to.In(aggregate.LocationKST).AddDate(0, 0, -1).Format("2006-01-02"),
	)

	s.logger.Info("セッションをエクスポートしました",
		slog.String("user_id", userID),
		slog.Int("session_count", len(valid)),
		slog.String("filename", filename),
	)
	return buf, filename, nil
}

// setRow は1行分のセル値を左から順に設定する。
func setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, v)
	}
}
