package admin

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuition/core"
)

var (
	tokenSalt = []byte("tuition.core.admin.password-reset")
	tsEncoder = base32.StdEncoding.WithPadding(base32.NoPadding)
	tokenRef  = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

	NowFunc = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes adm's ID for use in a password reset link.
func EncodeUID(adm Administrator) string {
	return base64.RawURLEncoding.EncodeToString([]byte(adm.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// MakeResetToken returns a password reset token for adm.
// The token stops verifying once adm's password or last login changes, or after Conf.PasswordResetTimeoutDelta.
func MakeResetToken(adm Administrator) (string, error) {
	return makeTokenAt(adm, daysSinceRef(NowFunc()))
}

func verifyResetToken(adm Administrator, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}
	raw, err := tsEncoder.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(raw))
	if err != nil {
		return errInvalidToken
	}

	want, err := makeTokenAt(adm, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return errInvalidToken
	}

	maxDays := int(core.Conf.PasswordResetTimeoutDelta / (24 * time.Hour))
	if daysSinceRef(NowFunc())-ts > maxDays {
		return errTokenExpired
	}
	return nil
}

func makeTokenAt(adm Administrator, ts int) (string, error) {
	var val bytes.Buffer
	val.WriteString(adm.ID)
	val.Write(adm.PasswordHash)
	if adm.LastLogin.Valid {
		val.WriteString(adm.LastLogin.Time.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))

	key := sha256.Sum256(append(tokenSalt, core.Conf.SecretKey...))
	mac := hmac.New(sha256.New, key[:])
	if _, err := mac.Write(val.Bytes()); err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("%s-%s", tsEncoder.EncodeToString([]byte(strconv.Itoa(ts))), sig), nil
}

func daysSinceRef(t time.Time) int {
	return int(t.Sub(tokenRef).Hours() / 24)
}
