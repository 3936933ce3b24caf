package utils

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/draftforge/contentflow_backend/config"
)

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func GenerateUniqueFilename() string {
	timestamp := time.Now().UnixNano()
	randomString := generateRandomString(8)
	return fmt.Sprintf("%d_%s", timestamp, randomString)
}

func generateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}

func NewTrue() *bool {
	b := true
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool)
	result := []T{}
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func NilIfEmpty[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

// Slugify builds a URL-safe slug from a title.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WorkspaceLock obtains a redis lock scoped to a workspace + module.
// Lock is best-effort: callers must stay correct without it.
func WorkspaceLock(ctx context.Context, workspaceId string, moduleName string, ttl time.Duration) (*redislock.Lock, error) {
	redisLock := config.GetRedisLock()
	if redisLock == nil {
		return nil, nil
	}
	key := fmt.Sprintf("lock:%s:%s", moduleName, workspaceId)
	lock, err := redisLock.Obtain(ctx, key, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}
