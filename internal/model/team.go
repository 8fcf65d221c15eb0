package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultTeamColor はチーム作成時に色が指定されなかった場合の既定値。
const DefaultTeamColor = "#4f46e5"

// Visibility はチームの公開範囲を表す。
type Visibility string

const (
	VisibilityEveryone   Visibility = "everyone"
	VisibilityMembers    Visibility = "members"
	VisibilityTeamLeader Visibility = "team_leader"
	VisibilityDisabled   Visibility = "disabled"
)

// Valid は定義済みの公開範囲かどうかを返す。
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityMembers, VisibilityTeamLeader, VisibilityDisabled:
		return true
	default:
		return false
	}
}

// Workflow はチーム内の役割ごとの担当者名を表す。
type Workflow struct {
	Leader    string `json:"leader"`
	Developer string `json:"developer"`
	Junior    string `json:"junior"`
}

// Normalize は各役割の前後空白を除去したWorkflowを返す。
func (w Workflow) Normalize() Workflow {
	return Workflow{
		Leader:    strings.TrimSpace(w.Leader),
		Developer: strings.TrimSpace(w.Developer),
		Junior:    strings.TrimSpace(w.Junior),
	}
}

// Member はチームに所属するメンバーを表す。
type Member struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Email      string `json:"email"`
	Age        *int   `json:"age"`
	YearJoined *int   `json:"yearJoined"`
	SubTask    string `json:"subTask"`
}

// Members はチームメンバーの一覧。
// JSONでは旧形式の文字列要素とオブジェクト要素が混在していても受け付ける。
type Members []Member

// UnmarshalJSON はjson.Unmarshalerを実装する。
// 文字列要素は名前のみのメンバーに変換し、IDが無い要素には "legacy-<index>" を割り当てる。
// 空文字列とnullの要素は読み飛ばす。
func (m *Members) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	out := make(Members, 0, len(raws))
	for i, raw := range raws {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}

		legacyID := fmt.Sprintf("legacy-%d", i)

		switch raw[0] {
		case '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, Member{ID: legacyID, Name: s})
		case '{':
			var obj struct {
				ID         any         `json:"id"`
				Name       string      `json:"name"`
				Username   string      `json:"username"`
				Role       string      `json:"role"`
				Email      string      `json:"email"`
				Age        OptionalInt `json:"age"`
				YearJoined OptionalInt `json:"yearJoined"`
				SubTask    string      `json:"subTask"`
			}
			if err := json.Unmarshal(raw, &obj); err != nil {
				return err
			}
			id := legacyID
			if obj.ID != nil {
				if s := strings.TrimSpace(fmt.Sprint(obj.ID)); s != "" {
					id = s
				}
			}
			out = append(out, Member{
				ID:         id,
				Name:       strings.TrimSpace(obj.Name),
				Username:   strings.TrimSpace(obj.Username),
				Role:       strings.TrimSpace(obj.Role),
				Email:      strings.TrimSpace(obj.Email),
				Age:        obj.Age.Ptr(),
				YearJoined: obj.YearJoined.Ptr(),
				SubTask:    strings.TrimSpace(obj.SubTask),
			})
		default:
			return fmt.Errorf("unsupported member JSON at index %d: %s", i, string(raw))
		}
	}

	*m = out
	return nil
}

// Team はメンバーとワークフローを持つチームを表す。
type Team struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Color       string
	Visibility  Visibility
	Members     Members
	Workflow    Workflow
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasMember はメールアドレスが一致するメンバーがいるかを返す。
func (t *Team) HasMember(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, m := range t.Members {
		if NormalizeEmail(m.Email) == email {
			return true
		}
	}
	return false
}

// Person はユーザーが管理する人物名簿の1件を表す。
type Person struct {
	ID         string
	OwnerID    string
	Name       string
	Email      string
	Role       string
	Department string
	CreatedAt  time.Time
}
