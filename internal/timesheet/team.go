package timesheet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/tpodo/internal/model"
)

// UserLookup はメールアドレスからユーザーを引く関数。該当が無ければ(nil, nil)を返す。
type UserLookup func(ctx context.Context, email string) (*model.User, error)

// EntriesLookup はユーザーの作業記録のスナップショットを返す関数。
type EntriesLookup func(ctx context.Context, userID string) ([]model.TimeEntry, error)

// WorkSession はレポート期間で切り取った1件の作業区間。
type WorkSession struct {
	ID       string
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Seconds は区間の長さを秒単位（四捨五入）で返す。
func (s WorkSession) Seconds() int64 {
	return roundSeconds(s.Duration)
}

// MemberReport はチームメンバー1人分の集計結果。
type MemberReport struct {
	MemberID string
	Name     string
	Email    string
	UserID   string // 紐づくユーザーが無い場合は空
	Total    time.Duration
	Sessions []WorkSession
}

// TotalSeconds は各区間のSecondsの合計を返す。
// 区間ごとに丸めてから足すので、表示される区間の秒数の和と常に一致する。
func (m MemberReport) TotalSeconds() int64 {
	var total int64
	for _, s := range m.Sessions {
		total += s.Seconds()
	}
	return total
}

// TotalHours は合計時間を小数第2位に丸めたhoursで返す。
func (m MemberReport) TotalHours() float64 {
	return Hours(m.Total)
}

// BuildTeamReport はチームメンバーごとの作業時間を期間rで集計する。
//
// メンバーはメールアドレス（大文字小文字を区別しない）でユーザーに対応付ける。
// 対応するユーザーがいないメンバーも合計0・区間なしで結果に含める。
// 計測中の記録はnowまでの区間として扱い、期間で切り取った長さが0の区間は含めない。
// 結果はmembersと同じ順序で返す。
func BuildTeamReport(
	ctx context.Context,
	members []model.Member,
	r Range,
	findUser UserLookup,
	listEntries EntriesLookup,
	now time.Time,
) ([]MemberReport, error) {
	reports := make([]MemberReport, 0, len(members))
	// 同じメールアドレスのメンバーが複数いても検索は1回にする
	userCache := make(map[string]*model.User)

	for _, m := range members {
		report := MemberReport{
			MemberID: m.ID,
			Name:     m.Name,
			Email:    m.Email,
			Sessions: []WorkSession{},
		}

		email := model.NormalizeEmail(m.Email)
		if email == "" {
			reports = append(reports, report)
			continue
		}

		user, cached := userCache[email]
		if !cached {
			u, err := findUser(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("failed to find user for member %s: %w", m.ID, err)
			}
			user = u
			userCache[email] = u
		}
		if user == nil {
			reports = append(reports, report)
			continue
		}
		report.UserID = user.ID

		entries, err := listEntries(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list entries for user %s: %w", user.ID, err)
		}

		for i := range entries {
			e := &entries[i]
			if e.IsCorrupt() {
				continue
			}
			c, ok := ClipInterval(e.Start, e.End, r, now)
			if !ok {
				continue
			}
			report.Sessions = append(report.Sessions, WorkSession{
				ID:       e.ID,
				Start:    c.Start,
				End:      c.End,
				Duration: c.Duration(),
			})
			report.Total += c.Duration()
		}

		sort.SliceStable(report.Sessions, func(i, j int) bool {
			return report.Sessions[i].Start.Before(report.Sessions[j].Start)
		})

		reports = append(reports, report)
	}

	return reports, nil
}

// DefaultReportRange はlocにおける当日0時からnowまでの期間を返す。
func DefaultReportRange(now time.Time, loc *time.Location) Range {
	return Range{From: StartOfDay(now, loc), To: now}
}

func roundSeconds(d time.Duration) int64 {
	return int64(d.Round(time.Second) / time.Second)
}
