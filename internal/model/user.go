// Package model はゲートウェイが扱うドメインモデルとDTOを定義する。
package model

// UserPreferences はユーザーのイベント関連設定を表す。
// user-svcが所有するデータであり、ゲートウェイは中継のみ行う。
type UserPreferences struct {
	PreferredEventFormat string `json:"preferredEventFormat,omitempty"`
	Industry             string `json:"industry,omitempty"`
	Language             string `json:"language,omitempty"`
	Timezone             string `json:"timezone,omitempty"`
}

// User はuser-svcから取得するユーザープロファイル。
// プロファイル取得に失敗した場合はIDのみの最小プロファイルとして使用される。
type User struct {
	ID          string           `json:"id"`
	Email       string           `json:"email,omitempty"`
	FirstName   string           `json:"firstName,omitempty"`
	LastName    string           `json:"lastName,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}
