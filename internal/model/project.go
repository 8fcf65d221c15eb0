package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Project は作業記録やタスクを分類するプロジェクトを表す。
type Project struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	CreatedAt   time.Time
}

// TaskStatus はタスクの状態を表す。
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid は定義済みの状態かどうかを返す。
func (s TaskStatus) Valid() bool {
	return s == TaskStatusOpen || s == TaskStatusCompleted
}

// Todo はタスク内のチェックリスト項目を表す。
type Todo struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Task はプロジェクトに属する作業単位を表す。
type Task struct {
	ID         string
	OwnerID    string
	ProjectID  *string
	TeamID     *string
	Title      string
	Status     TaskStatus
	AssignedTo Assignee
	Todos      []Todo
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AssigneeKind は担当者の表現形式を表す。
type AssigneeKind int

const (
	// AssigneeNone は担当者未設定。
	AssigneeNone AssigneeKind = iota
	// AssigneeNameOnly は名前のみで指定された担当者。
	AssigneeNameOnly
	// AssigneeDetailed はチームメンバー情報付きの担当者。
	AssigneeDetailed
)

// AssigneeDetail はチームメンバーとして割り当てられた担当者の詳細。
type AssigneeDetail struct {
	MemberID   string `json:"memberId,omitempty"`
	TeamID     string `json:"teamId,omitempty"`
	Name       string `json:"name,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Age        *int   `json:"age,omitempty"`
	YearJoined *int   `json:"yearJoined,omitempty"`
	SubTask    string `json:"subTask,omitempty"`
}

// Assignee はタスクの担当者を表すタグ付き共用体。
// JSONではnull、文字列、オブジェクトのいずれかで表現される。
type Assignee struct {
	kind   AssigneeKind
	name   string
	detail AssigneeDetail
}

// NoAssignee は担当者未設定を返す。
func NoAssignee() Assignee {
	return Assignee{kind: AssigneeNone}
}

// NameOnlyAssignee は名前のみの担当者を返す。空白のみの名前は未設定として扱う。
func NameOnlyAssignee(name string) Assignee {
	name = strings.TrimSpace(name)
	if name == "" {
		return NoAssignee()
	}
	return Assignee{kind: AssigneeNameOnly, name: name}
}

// DetailedAssignee はメンバー詳細付きの担当者を返す。
func DetailedAssignee(d AssigneeDetail) Assignee {
	return Assignee{kind: AssigneeDetailed, detail: d}
}

// Kind は担当者の表現形式を返す。
func (a Assignee) Kind() AssigneeKind {
	return a.kind
}

// Name は表示用の名前を返す。
func (a Assignee) Name() string {
	switch a.kind {
	case AssigneeNameOnly:
		return a.name
	case AssigneeDetailed:
		return a.detail.Name
	default:
		return ""
	}
}

// Detail はメンバー詳細を返す。詳細形式でない場合はfalseを返す。
func (a Assignee) Detail() (AssigneeDetail, bool) {
	if a.kind != AssigneeDetailed {
		return AssigneeDetail{}, false
	}
	return a.detail, true
}

// Matches は担当者がkeysのいずれかに一致するかを判定する。
// 名前のみの場合は名前、詳細形式の場合は名前・メールアドレス・ユーザー名を比較対象とする。
// 比較は前後空白を除いた小文字で行う。
func (a Assignee) Matches(keys ...string) bool {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			want[k] = struct{}{}
		}
	}

	var candidates []string
	switch a.kind {
	case AssigneeNameOnly:
		candidates = []string{a.name}
	case AssigneeDetailed:
		candidates = []string{a.detail.Name, a.detail.Email, a.detail.Username}
	}

	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := want[c]; ok {
			return true
		}
	}
	return false
}

// MatchesEmail は詳細形式の担当者のメールアドレスがemailと一致するかを判定する。
// 名前のみの担当者は常にfalseを返す。
func (a Assignee) MatchesEmail(email string) bool {
	email = NormalizeEmail(email)
	return a.kind == AssigneeDetailed && email != "" && NormalizeEmail(a.detail.Email) == email
}

// VisibleTo はuがタスクを閲覧できるかを返す。作成者と担当者が閲覧できる。
// 担当者は名前かメールアドレスで照合する。
func (t *Task) VisibleTo(u *User) bool {
	if u == nil {
		return false
	}
	return t.OwnerID == u.ID || t.AssignedTo.Matches(u.Name, u.Email)
}

// EditableBy はuがタスクを更新できるかを返す。
// 表示名はユーザーが自由に変更できるため、担当者はメールアドレスで照合できる場合に限る。
func (t *Task) EditableBy(u *User) bool {
	if u == nil {
		return false
	}
	return t.OwnerID == u.ID || t.AssignedTo.MatchesEmail(u.Email)
}

// MarshalJSON はjson.Marshalerを実装する。
func (a Assignee) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AssigneeNameOnly:
		return json.Marshal(a.name)
	case AssigneeDetailed:
		return json.Marshal(a.detail)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (a *Assignee) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = NoAssignee()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = NameOnlyAssignee(s)
		return nil
	case '{':
		var raw struct {
			MemberID   string      `json:"memberId"`
			TeamID     string      `json:"teamId"`
			Name       string      `json:"name"`
			Username   string      `json:"username"`
			Email      string      `json:"email"`
			Role       string      `json:"role"`
			Age        OptionalInt `json:"age"`
			YearJoined OptionalInt `json:"yearJoined"`
			SubTask    string      `json:"subTask"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*a = DetailedAssignee(AssigneeDetail{
			MemberID:   raw.MemberID,
			TeamID:     raw.TeamID,
			Name:       strings.TrimSpace(raw.Name),
			Username:   strings.TrimSpace(raw.Username),
			Email:      strings.TrimSpace(raw.Email),
			Role:       raw.Role,
			Age:        raw.Age.Ptr(),
			YearJoined: raw.YearJoined.Ptr(),
			SubTask:    raw.SubTask,
		})
		return nil
	default:
		return fmt.Errorf("unsupported assignee JSON: %s", string(data))
	}
}

// OptionalInt は数値・数値文字列・null・空文字列のいずれも受け付ける整数。
// 旧クライアントは年齢などを文字列で送ってくるため、その互換用。
type OptionalInt struct {
	Value int
	Set   bool
}

// Ptr は値が設定されていればそのポインタを、未設定ならnilを返す。
func (o OptionalInt) Ptr() *int {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*o = OptionalInt{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			// 数値として解釈できない文字列は未設定扱い
			return nil
		}
		*o = OptionalInt{Value: v, Set: true}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*o = OptionalInt{Value: int(f), Set: true}
	return nil
}
