package identity

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// Password reset code limits.
const (
	OTPTTL         = 10 * time.Minute
	OTPMaxAttempts = 5
)

// OTPStore keeps hashed one-time reset codes in Redis.
type OTPStore struct {
	client *redis.Client
	secret []byte
}

// NewOTPStore constructs an OTPStore. secret keys the stored code digests.
func NewOTPStore(client *redis.Client, secret string) *OTPStore {
	return &OTPStore{client: client, secret: []byte(secret)}
}

func (s *OTPStore) key(accountID string) string {
	return "otp:reset:" + accountID
}

// Issue replaces any outstanding code for the account and returns a new one.
func (s *OTPStore) Issue(ctx context.Context, accountID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	key := s.key(accountID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "digest", s.digest(accountID, code), "attempts", 0)
	pipe.Expire(ctx, key, OTPTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", shared.Unavailable("issue otp", err)
	}
	return code, nil
}

// Verify checks code. A correct code is consumed; the code is also dropped
// once OTPMaxAttempts wrong guesses were made.
func (s *OTPStore) Verify(ctx context.Context, accountID, code string) (bool, error) {
	key := s.key(accountID)
	stored, err := s.client.HGet(ctx, key, "digest").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, shared.Unavailable("verify otp", err)
	}
	if hmac.Equal([]byte(stored), []byte(s.digest(accountID, code))) {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return false, shared.Unavailable("consume otp", err)
		}
		return true, nil
	}
	attempts, err := s.client.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return false, shared.Unavailable("verify otp", err)
	}
	if attempts >= OTPMaxAttempts {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return false, shared.Unavailable("drop otp", err)
		}
	}
	return false, nil
}

func (s *OTPStore) digest(accountID, code string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(accountID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
