// Package telegram verifies and decodes Telegram WebApp initData tokens.
package telegram

import (
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// HeaderName carries the raw initData string on every mini app request.
const HeaderName = "X-Telegram-InitData"

type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

type InitData struct {
	Fields   map[string]string
	Hash     string
	QueryID  string
	AuthDate time.Time
	// User is nil when the user field is absent or is not valid JSON.
	User *User
}

// TgID returns the user id as a decimal string.
func (d *InitData) TgID() (string, bool) {
	if d == nil || d.User == nil || d.User.ID == 0 {
		return "", false
	}
	return strconv.FormatInt(d.User.ID, 10), true
}

// parseFlat decodes a query string keeping the first value of every key.
func parseFlat(initData string) (map[string]string, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// Parse decodes initData without checking its signature. Callers must run
// Verify first.
func Parse(initData string) (*InitData, error) {
	fields, err := parseFlat(initData)
	if err != nil {
		return nil, err
	}

	data := &InitData{
		Fields:  fields,
		Hash:    fields["hash"],
		QueryID: fields["query_id"],
	}
	if ts, err := strconv.ParseInt(fields["auth_date"], 10, 64); err == nil {
		data.AuthDate = time.Unix(ts, 0).UTC()
	}
	if raw, ok := fields["user"]; ok {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			data.User = &u
		}
	}
	return data, nil
}
