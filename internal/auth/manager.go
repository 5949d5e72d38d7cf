// Package auth は API の Basic 認証を提供します。
package auth

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/sort-forge/internal/config"
)

const realm = "sort-forge"

var (
	loginWindow      = 15 * time.Minute
	lockDuration     = 10 * time.Minute
	maxLoginAttempts = 5
)

// ContextUserKey は、ハンドラー間で認証済みユーザー名を共有するためのキーです。
const ContextUserKey = "auth.user"

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と試行回数の状態をまとめた構造体です。
type Manager struct {
	username     string
	passwordHash string
	now          func() time.Time

	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		username:     cfg.AppUsername,
		passwordHash: cfg.AppPasswordHash,
		now:          time.Now,
		attempts:     make(map[string]*attemptState),
	}
}

func (m *Manager) ensureCredentials() error {
	if m.username == "" {
		return errors.New("APP_USERNAME が設定されていません")
	}
	if m.passwordHash == "" {
		return errors.New("APP_PASSWORD_HASH が設定されていません")
	}
	return nil
}

func (m *Manager) verify(username, password string) bool {
	// ユーザー名が違っても bcrypt の比較は行い、応答時間を揃える
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)) == nil
	return userOK && passOK
}

func (m *Manager) checkLock(ip string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := m.now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (m *Manager) recordFailure(ip string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}

	return max(maxLoginAttempts-state.count, 0)
}

func (m *Manager) resetAttempts(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}
