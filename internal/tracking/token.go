package tracking

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Token is the decoded form of a click or unsubscribe token.
type Token struct {
	CampaignID  int64
	RecipientID int64
	// Payload is the target URL for click tokens and empty otherwise.
	Payload  string
	IssuedAt time.Time
}

// Encode packs the ids, payload and issue time into a URL-safe token.
// Tokens are obfuscated, not signed.
func Encode(campaignID, recipientID int64, payload string, now time.Time) string {
	data := fmt.Sprintf("%d:%d:%s:%d", campaignID, recipientID, payload, now.UnixMilli())
	return base64.RawURLEncoding.EncodeToString([]byte(data))
}

var tokenEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// Decode reverses Encode. Anything that is not structurally a token yields
// an *domain.InvalidTokenError.
func Decode(token string) (Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Token{}, &domain.InvalidTokenError{Reason: "empty token"}
	}

	var raw []byte
	var decodeErr error
	for _, enc := range tokenEncodings {
		raw, decodeErr = enc.DecodeString(token)
		if decodeErr == nil {
			break
		}
	}
	if decodeErr != nil {
		return Token{}, &domain.InvalidTokenError{Reason: "bad encoding", Err: decodeErr}
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) < 2 {
		return Token{}, &domain.InvalidTokenError{Reason: "too few fields"}
	}

	campaignID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Token{}, &domain.InvalidTokenError{Reason: "campaign id", Err: err}
	}
	recipientID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Token{}, &domain.InvalidTokenError{Reason: "recipient id", Err: err}
	}
	tok := Token{CampaignID: campaignID, RecipientID: recipientID}

	switch n := len(parts); {
	case n == 2:
	case n == 3:
		// cid:rid:millis or cid:rid:payload
		if ms, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			tok.IssuedAt = time.UnixMilli(ms).UTC()
		} else {
			tok.Payload = parts[2]
		}
	default:
		ms, err := strconv.ParseInt(parts[n-1], 10, 64)
		if err != nil {
			return Token{}, &domain.InvalidTokenError{Reason: "timestamp", Err: err}
		}
		tok.IssuedAt = time.UnixMilli(ms).UTC()
		tok.Payload = strings.Join(parts[2:n-1], ":")
	}
	return tok, nil
}
