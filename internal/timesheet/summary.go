package timesheet

import "time"

// LabelStyle はグラフの横軸ラベルの書式。
type LabelStyle string

const (
	// LabelWeekday は曜日の短縮名（例: "Mon"）。
	LabelWeekday LabelStyle = "weekday"
	// LabelDate は日付（例: "2. Jan"）。
	LabelDate LabelStyle = "date"
)

// Valid は定義済みの書式かどうかを返す。
func (s LabelStyle) Valid() bool {
	return s == LabelWeekday || s == LabelDate
}

// Label はlocalな日付をstyleに従って書式化する。
func (s LabelStyle) Label(date time.Time) string {
	if s == LabelWeekday {
		return date.Format("Mon")
	}
	return date.Format("2. Jan")
}

// Point はグラフの1点。
type Point struct {
	Date  time.Time
	Label string
	Hours float64
}

// Series はグラフ表示用の系列と集計値。
type Series struct {
	Points       []Point
	TotalHours   float64
	AverageHours float64
}

// Summarize は日ごとの集計結果をラベル付きの系列に変換する。
// 平均は全期間の日数で割った算術平均で、0時間の日も分母に含める。
func Summarize(buckets []DayBucket, style LabelStyle) Series {
	series := Series{Points: make([]Point, len(buckets))}

	var total time.Duration
	for i, b := range buckets {
		series.Points[i] = Point{
			Date:  b.Date,
			Label: style.Label(b.Date),
			Hours: Hours(b.Duration),
		}
		total += b.Duration
	}

	series.TotalHours = Hours(total)
	if len(buckets) > 0 {
		series.AverageHours = RoundHours(total.Hours() / float64(len(buckets)))
	}
	return series
}
