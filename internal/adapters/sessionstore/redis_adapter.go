package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storepulse/analytics-backend/internal/domain/entities"
	"github.com/storepulse/analytics-backend/internal/domain/repositories"
	redisclient "github.com/storepulse/analytics-backend/internal/infrastructure/clients/redis"
	apperrors "github.com/storepulse/analytics-backend/pkg/errors"
)

const (
	sessionKeyPrefix = "live:session:"
	activeSetKey     = "live:sessions:active"
)

// upsertScript applies a session patch as one atomic merge: create-if-absent
// from the base document, latest-wins scalar sets, zero-clamped increments,
// and a monotonic lastActiveAt (max of existing and incoming, mirrored into
// the activity ZSET via ZADD GT). The hash TTL is refreshed on every call;
// expiry is entirely Redis's job.
var upsertScript = redis.NewScript(`
local key = KEYS[1]
local zkey = KEYS[2]
local id = ARGV[1]
local ts = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local created = 0
if redis.call('EXISTS', key) == 0 then
	created = 1
	local base = cjson.decode(ARGV[4])
	for f, v in pairs(base) do
		redis.call('HSET', key, f, v)
	end
end

local sets = cjson.decode(ARGV[5])
for f, v in pairs(sets) do
	redis.call('HSET', key, f, v)
end

local incs = cjson.decode(ARGV[6])
for f, d in pairs(incs) do
	if redis.call('HINCRBY', key, f, d) < 0 then
		redis.call('HSET', key, f, 0)
	end
end

local fincs = cjson.decode(ARGV[7])
for f, d in pairs(fincs) do
	if tonumber(redis.call('HINCRBYFLOAT', key, f, d)) < 0 then
		redis.call('HSET', key, f, 0)
	end
end

if ARGV[9] == '1' then
	redis.call('HSET', key, 'cartItems', 0, 'cartValue', 0, 'cartProducts', '[]')
end

if ARGV[8] ~= '' then
	local raw = redis.call('HGET', key, 'cartProducts')
	local items = {}
	if raw and raw ~= '' and raw ~= '[]' then
		items = cjson.decode(raw)
	end
	items[#items + 1] = cjson.decode(ARGV[8])
	redis.call('HSET', key, 'cartProducts', cjson.encode(items))
end

local prev = tonumber(redis.call('HGET', key, 'lastActiveAt'))
if not prev or ts > prev then
	redis.call('HSET', key, 'lastActiveAt', ts)
end
redis.call('ZADD', zkey, 'GT', ts, id)
redis.call('PEXPIRE', key, ttl)

return {created, redis.call('HGETALL', key)}
`)

// RedisSessionStore implements SessionRepository on Redis: one hash per
// session with a TTL equal to the active window, plus a ZSET scored by
// lastActiveAt for the recency-ordered active listing.
type RedisSessionStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store whose sessions expire ttl
// after their last update
func NewRedisSessionStore(client *redisclient.Client, ttl time.Duration) repositories.SessionRepository {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Upsert applies the patch atomically, creating the session from patch.Base
// when unseen, and returns the resulting session
func (s *RedisSessionStore) Upsert(ctx context.Context, sessionID string, patch *entities.SessionPatch) (*entities.Session, bool, error) {
	if sessionID == "" {
		return nil, false, apperrors.NewValidationError("session id is required")
	}
	if patch == nil {
		patch = &entities.SessionPatch{}
	}

	base := "{}"
	if patch.Base != nil {
		b, err := json.Marshal(hashFields(patch.Base))
		if err != nil {
			return nil, false, apperrors.NewInternalError("failed to encode session base", err)
		}
		base = string(b)
	}

	sets := map[string]string{}
	if patch.CurrentPage != nil {
		sets["currentPage"] = *patch.CurrentPage
	}
	if patch.Status != nil {
		sets["status"] = string(*patch.Status)
	}
	if patch.EndedAt != nil {
		sets["endedAt"] = strconv.FormatInt(patch.EndedAt.UnixMilli(), 10)
	}
	setsJSON, err := json.Marshal(sets)
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to encode session sets", err)
	}

	incs := map[string]int64{}
	if patch.PageViewsDelta != 0 {
		incs["pageViews"] = int64(patch.PageViewsDelta)
	}
	if patch.CartItemsDelta != 0 {
		incs["cartItems"] = int64(patch.CartItemsDelta)
	}
	incsJSON, err := json.Marshal(incs)
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to encode session increments", err)
	}

	fincs := map[string]float64{}
	if patch.CartValueDelta != 0 {
		fincs["cartValue"] = patch.CartValueDelta
	}
	fincsJSON, err := json.Marshal(fincs)
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to encode session increments", err)
	}

	cartProduct := ""
	if patch.AddCartProduct != nil {
		b, err := json.Marshal(patch.AddCartProduct)
		if err != nil {
			return nil, false, apperrors.NewInternalError("failed to encode cart product", err)
		}
		cartProduct = string(b)
	}

	clearCart := "0"
	if patch.ClearCart {
		clearCart = "1"
	}

	ts := patch.LastActiveAt
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := upsertScript.Run(ctx, s.client.Client(),
		[]string{sessionKeyPrefix + sessionID, activeSetKey},
		sessionID,
		ts.UnixMilli(),
		s.ttl.Milliseconds(),
		base,
		string(setsJSON),
		string(incsJSON),
		string(fincsJSON),
		cartProduct,
		clearCart,
	).Result()
	if err != nil {
		return nil, false, apperrors.NewUnavailableError("failed to upsert session", err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, false, apperrors.NewInternalError("unexpected upsert reply", fmt.Errorf("reply: %v", res))
	}
	created, _ := reply[0].(int64)

	fields, err := flatToMap(reply[1])
	if err != nil {
		return nil, false, apperrors.NewInternalError("unexpected upsert reply", err)
	}
	session, err := parseSession(fields)
	if err != nil {
		return nil, false, err
	}
	session.Duration = int(time.Since(session.StartedAt).Seconds())
	return session, created == 1, nil
}

// ListActive trims the activity set and returns sessions still inside the
// window, most recently active first
func (s *RedisSessionStore) ListActive(ctx context.Context, window time.Duration) ([]*entities.Session, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	rdb := s.client.Client()
	if err := rdb.ZRemRangeByScore(ctx, activeSetKey, "-inf",
		fmt.Sprintf("(%d", cutoff.UnixMilli())).Err(); err != nil {
		return nil, apperrors.NewUnavailableError("failed to trim active session set", err)
	}

	ids, err := rdb.ZRevRangeByScore(ctx, activeSetKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to list active sessions", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, sessionKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.NewUnavailableError("failed to load active sessions", err)
	}

	sessions := make([]*entities.Session, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			// Hash expired between the ZSET read and here
			continue
		}
		session, err := parseSession(fields)
		if err != nil {
			continue
		}
		if session.LastActiveAt.Before(cutoff) {
			continue
		}
		session.Duration = int(now.Sub(session.StartedAt).Seconds())
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func hashFields(s *entities.Session) map[string]string {
	startedAt := s.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	lastActive := s.LastActiveAt
	if lastActive.IsZero() {
		lastActive = startedAt
	}
	status := s.Status
	if status == "" {
		status = entities.SessionStatusBrowsing
	}
	device := s.Device
	if device == "" {
		device = entities.DeviceDesktop
	}
	cartProducts := "[]"
	if len(s.CartProducts) > 0 {
		if b, err := json.Marshal(s.CartProducts); err == nil {
			cartProducts = string(b)
		}
	}
	fields := map[string]string{
		"sessionId":    s.SessionID,
		"visitorId":    s.VisitorID,
		"ip":           s.IP,
		"city":         s.City,
		"region":       s.Region,
		"country":      s.Country,
		"latitude":     strconv.FormatFloat(s.Latitude, 'f', -1, 64),
		"longitude":    strconv.FormatFloat(s.Longitude, 'f', -1, 64),
		"device":       string(device),
		"browser":      s.Browser,
		"userAgent":    s.UserAgent,
		"currentPage":  s.CurrentPage,
		"referrer":     s.Referrer,
		"utmSource":    s.UTMSource,
		"utmMedium":    s.UTMMedium,
		"utmCampaign":  s.UTMCampaign,
		"cartItems":    strconv.Itoa(s.CartItems),
		"cartValue":    strconv.FormatFloat(s.CartValue, 'f', -1, 64),
		"cartProducts": cartProducts,
		"status":       string(status),
		"startedAt":    strconv.FormatInt(startedAt.UnixMilli(), 10),
		"lastActiveAt": strconv.FormatInt(lastActive.UnixMilli(), 10),
		"pageViews":    strconv.Itoa(s.PageViews),
	}
	if s.EndedAt != nil {
		fields["endedAt"] = strconv.FormatInt(s.EndedAt.UnixMilli(), 10)
	}
	return fields
}

func parseSession(fields map[string]string) (*entities.Session, error) {
	id := fields["sessionId"]
	if id == "" {
		return nil, apperrors.NewInternalError("session hash missing sessionId", nil)
	}

	s := &entities.Session{
		SessionID:   id,
		VisitorID:   fields["visitorId"],
		IP:          fields["ip"],
		City:        fields["city"],
		Region:      fields["region"],
		Country:     fields["country"],
		Device:      entities.DeviceType(fields["device"]),
		Browser:     fields["browser"],
		UserAgent:   fields["userAgent"],
		CurrentPage: fields["currentPage"],
		Referrer:    fields["referrer"],
		UTMSource:   fields["utmSource"],
		UTMMedium:   fields["utmMedium"],
		UTMCampaign: fields["utmCampaign"],
		Status:      entities.SessionStatus(fields["status"]),
	}
	s.Latitude, _ = strconv.ParseFloat(fields["latitude"], 64)
	s.Longitude, _ = strconv.ParseFloat(fields["longitude"], 64)
	s.CartItems, _ = strconv.Atoi(fields["cartItems"])
	s.CartValue, _ = strconv.ParseFloat(fields["cartValue"], 64)
	s.PageViews, _ = strconv.Atoi(fields["pageViews"])

	if raw := fields["cartProducts"]; raw != "" && raw != "[]" {
		_ = json.Unmarshal([]byte(raw), &s.CartProducts)
	}
	if ms, err := strconv.ParseInt(fields["startedAt"], 10, 64); err == nil {
		s.StartedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["lastActiveAt"], 10, 64); err == nil {
		s.LastActiveAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["endedAt"], 10, 64); err == nil {
		ended := time.UnixMilli(ms)
		s.EndedAt = &ended
	}
	return s, nil
}

func flatToMap(reply interface{}) (map[string]string, error) {
	flat, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected flat hash reply, got %T", reply)
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}
	return fields, nil
}
