package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"weddingtg/config"
)

// TelegramUser is the user object embedded in a Mini App launch payload.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

var ErrInvalidInitData = errors.New("invalid init data")

// VerifyInitData validates a Telegram WebApp initData payload and
// returns the embedded user. The check is the documented scheme: pop
// "hash", join the remaining sorted pairs with newlines, HMAC-SHA256
// with SHA256(botToken) as key, constant-time compare.
func VerifyInitData(cfg *config.Config, initData string) (*TelegramUser, error) {
	if cfg.AllowDevAuth && (initData == "" || initData == "dev") {
		return &TelegramUser{ID: cfg.DevUserID, FirstName: "Dev", LastName: "User", Username: "dev_user"}, nil
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidInitData)
	}

	receivedHash := values.Get("hash")
	if receivedHash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := sha256.Sum256([]byte(cfg.BotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(receivedHash)) {
		return nil, fmt.Errorf("%w: hash mismatch", ErrInvalidInitData)
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidInitData)
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("%w: bad user payload", ErrInvalidInitData)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInitData)
	}
	return &user, nil
}

// SignInitData builds a signed initData string for the given user.
// Used by the dev tooling and tests; production payloads come from
// Telegram itself.
func SignInitData(botToken string, user TelegramUser, extra url.Values) (string, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return "", err
	}

	values := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	values.Set("user", string(userJSON))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	checkString := strings.Join(pairs, "\n")

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))

	return values.Encode(), nil
}
