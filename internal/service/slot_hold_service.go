package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrSlotHeld is returned when another booking attempt currently holds the slot
var ErrSlotHeld = errors.New("slot is currently held by another booking attempt")

// releaseHoldScript is a package-level Lua script.
// Redis Go client automatically uses EVALSHA (send SHA hash only) after the
// first call, instead of EVAL (send full script text every time).
//
// Logic: delete the hold key only when it still carries our token, so a
// booking that outlived its hold TTL cannot release a hold acquired by a
// competing request.
var releaseHoldScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

const (
	// Redis key prefixes for the booking system
	RedisHoldKeyPrefix  = "slot:hold:"
	RedisSlotsKeyPrefix = "slots:"
)

// SlotHoldService is the Redis fast path in front of the appointments table.
//
// A hold on (doctor, date, time) is a SET NX with a short TTL: it sheds the
// obvious loser of two concurrent bookings before either touches PostgreSQL.
// It is an optimization only — the partial unique index on appointments is
// the authoritative conflict signal, and an expired or unavailable hold never
// blocks the database path.
//
// The service also caches resolved day slots per (doctor, date) with a short
// TTL, invalidated whenever the doctor's schedules change.
type SlotHoldService struct {
	redisClient *redis.Client
	log         *logrus.Logger
	holdTTL     time.Duration
	cacheTTL    time.Duration
}

func NewSlotHoldService(redisClient *redis.Client, log *logrus.Logger, holdTTL, cacheTTL time.Duration) *SlotHoldService {
	return &SlotHoldService{
		redisClient: redisClient,
		log:         log,
		holdTTL:     holdTTL,
		cacheTTL:    cacheTTL,
	}
}

func holdKey(doctorID uuid.UUID, date, slotTime string) string {
	return fmt.Sprintf("%s%s:%s:%s", RedisHoldKeyPrefix, doctorID, date, slotTime)
}

func slotsKey(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("%s%s:%s", RedisSlotsKeyPrefix, doctorID, date)
}

// AcquireHold reserves (doctorID, date, slotTime) for one booking attempt.
// Returns an opaque token needed to release the hold, or ErrSlotHeld when a
// concurrent attempt already holds the slot.
func (s *SlotHoldService) AcquireHold(ctx context.Context, doctorID uuid.UUID, date, slotTime string) (string, error) {
	token := uuid.NewString()
	ok, err := s.redisClient.SetNX(ctx, holdKey(doctorID, date, slotTime), token, s.holdTTL).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrSlotHeld
	}
	return token, nil
}

// ReleaseHold frees the hold if it still belongs to token. Safe to call
// after the TTL expired; the Lua guard keeps it from deleting another
// attempt's hold.
func (s *SlotHoldService) ReleaseHold(ctx context.Context, doctorID uuid.UUID, date, slotTime, token string) {
	if err := releaseHoldScript.Run(ctx, s.redisClient, []string{holdKey(doctorID, date, slotTime)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		// Non-fatal: the hold expires on its own.
		s.log.Warnf("Failed to release slot hold for doctor %s %s %s: %+v", doctorID, date, slotTime, err)
	}
}

// CacheDaySlots stores the serialized slot listing for (doctorID, date).
func (s *SlotHoldService) CacheDaySlots(ctx context.Context, doctorID uuid.UUID, date string, payload []byte) {
	if err := s.redisClient.Set(ctx, slotsKey(doctorID, date), payload, s.cacheTTL).Err(); err != nil {
		s.log.Warnf("Failed to cache day slots for doctor %s %s: %+v", doctorID, date, err)
	}
}

// GetCachedDaySlots returns the cached slot listing, or nil on miss.
// A Redis failure is reported as a miss: availability must come from the
// database rather than not at all.
func (s *SlotHoldService) GetCachedDaySlots(ctx context.Context, doctorID uuid.UUID, date string) []byte {
	payload, err := s.redisClient.Get(ctx, slotsKey(doctorID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warnf("Failed to read day slot cache for doctor %s %s: %+v", doctorID, date, err)
		}
		return nil
	}
	return payload
}

// InvalidateDoctorSlots drops every cached day for the doctor. Called on
// schedule writes so cached slot sets never outlive the schedule they were
// derived from.
func (s *SlotHoldService) InvalidateDoctorSlots(ctx context.Context, doctorID uuid.UUID) {
	pattern := fmt.Sprintf("%s%s:*", RedisSlotsKeyPrefix, doctorID)
	keys, err := s.redisClient.Keys(ctx, pattern).Result()
	if err != nil {
		s.log.Warnf("Failed to list slot cache keys for doctor %s: %+v", doctorID, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		s.log.Warnf("Failed to invalidate slot cache for doctor %s: %+v", doctorID, err)
	}
}

// InvalidateDay drops the cached listing for a single (doctorID, date).
// Called after bookings and cancellations so the booked list stays fresh.
func (s *SlotHoldService) InvalidateDay(ctx context.Context, doctorID uuid.UUID, date string) {
	if err := s.redisClient.Del(ctx, slotsKey(doctorID, date)).Err(); err != nil {
		s.log.Warnf("Failed to invalidate slot cache for doctor %s %s: %+v", doctorID, date, err)
	}
}
