package balance

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// debitScript performs the check-and-debit as one server-side operation.
// KEYS[1] = renewable key, KEYS[2] = permanent key, ARGV[1] = amount.
// Returns {renewable_debited, permanent_debited} or an error reply when the
// combined balance is insufficient.
const debitScript = `
local renewable = tonumber(redis.call('GET', KEYS[1]) or '0')
local permanent = tonumber(redis.call('GET', KEYS[2]) or '0')
local amount = tonumber(ARGV[1])
if renewable + permanent < amount then
  return redis.error_reply('insufficient')
end
local fromRenewable = math.min(amount, renewable)
local fromPermanent = amount - fromRenewable
if fromRenewable > 0 then
  redis.call('DECRBY', KEYS[1], fromRenewable)
end
if fromPermanent > 0 then
  redis.call('DECRBY', KEYS[2], fromPermanent)
end
return {fromRenewable, fromPermanent}
`

// RedisStore is a Store backed by redis. The debit path runs a Lua script so
// the read-check-write is atomic across processes.
type RedisStore struct {
	client *redis.Client
	debit  *redis.Script
}

// NewRedisStore creates a store from a redis connection URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewRedisStoreFromClient(redis.NewClient(opts)), nil
}

// NewRedisStoreFromClient creates a store from an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		debit:  redis.NewScript(debitScript),
	}
}

func renewableKey(accountID string) string { return "balance:" + accountID + ":renewable" }
func permanentKey(accountID string) string { return "balance:" + accountID + ":permanent" }

// Balance implements Store.
func (s *RedisStore) Balance(ctx context.Context, accountID string) (Balance, error) {
	values, err := s.client.MGet(ctx, renewableKey(accountID), permanentKey(accountID)).Result()
	if err != nil {
		return Balance{}, fmt.Errorf("failed to read balance for %s: %w", accountID, err)
	}

	return Balance{
		Renewable: parseCredits(values[0]),
		Permanent: parseCredits(values[1]),
	}, nil
}

// Debit implements Store via the atomic Lua script.
func (s *RedisStore) Debit(ctx context.Context, accountID string, amount int64) (int64, int64, error) {
	result, err := s.debit.Run(ctx, s.client, []string{renewableKey(accountID), permanentKey(accountID)}, amount).Result()
	if err != nil {
		if err.Error() == "insufficient" {
			return 0, 0, ErrInsufficientBalance
		}

		return 0, 0, fmt.Errorf("failed to debit account %s: %w", accountID, err)
	}

	parts, ok := result.([]any)
	if !ok || len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected debit script reply: %v", result)
	}

	renewable, _ := parts[0].(int64)
	permanent, _ := parts[1].(int64)

	return renewable, permanent, nil
}

// Credit implements Store.
func (s *RedisStore) Credit(ctx context.Context, accountID string, amount int64) error {
	err := s.client.IncrBy(ctx, renewableKey(accountID), amount).Err()
	if err != nil {
		return fmt.Errorf("failed to credit account %s: %w", accountID, err)
	}

	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseCredits(value any) int64 {
	s, ok := value.(string)
	if !ok {
		return 0
	}

	var credits int64

	_, err := fmt.Sscanf(s, "%d", &credits)
	if err != nil {
		return 0
	}

	return credits
}
