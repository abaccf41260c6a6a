package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"dukapos/backend/internal/domain"
)

// AuthManager issues and verifies session tokens for shop staff. Accounts
// live in the user store; a cached copy keeps the hot login path off the
// database and is refreshed at most once per refreshEvery.
type AuthManager struct {
	mu           sync.RWMutex
	secret       []byte
	tokenTTL     time.Duration
	managerPIN   string
	userStore    UserStore
	accounts     map[string]account
	lastRefresh  time.Time
	refreshEvery time.Duration
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// account is a cached credential row. Cashiers are pinned to the department
// whose drawer they run; admins have no pin and see every department.
type account struct {
	passwordHash string
	role         string
	departmentID string
	active       bool
	created      time.Time
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role         string `json:"role"`
	DepartmentID string `json:"dept,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	managerPIN = strings.TrimSpace(managerPIN)
	if managerPIN == "" {
		managerPIN = "disabled"
	}
	if hashed, err := hashPassword(managerPIN); err == nil {
		managerPIN = hashed
	}

	m := &AuthManager{
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
		managerPIN:   managerPIN,
		userStore:    userStore,
		accounts:     make(map[string]account),
		refreshEvery: 30 * time.Second,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.refreshAccounts(ctx, true)
	return m
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.refreshAccounts(ctx, false)

	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	acct, ok := a.accounts[username]
	a.mu.RUnlock()
	if !ok {
		// Unknown name may be an account created by another instance
		// since the last reload.
		a.refreshAccounts(ctx, true)
		a.mu.RLock()
		acct, ok = a.accounts[username]
		a.mu.RUnlock()
	}
	if !ok || !verifyPassword(acct.passwordHash, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !acct.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, acct, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken:  token,
		Role:         acct.role,
		DepartmentID: acct.departmentID,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		Username:     sub,
		Role:         claims.Role,
		DepartmentID: claims.DepartmentID,
	}, nil
}

func (a *AuthManager) sign(username string, acct account, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "dukapos",
		},
		Role:         acct.role,
		DepartmentID: acct.departmentID,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateManagerPIN checks the override PIN used for sale voids. The PIN is
// stored hashed; a manager who cannot produce it does not void sales.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !isPasswordHash(a.managerPIN) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.CashierUser{}, fmt.Errorf("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.CashierUser{}, fmt.Errorf("username must not contain spaces")
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.CashierUser{}, fmt.Errorf("password must be at least 6 characters")
	}
	departmentID := strings.TrimSpace(req.DepartmentID)

	a.refreshAccounts(ctx, false)
	a.mu.RLock()
	_, exists := a.accounts[username]
	a.mu.RUnlock()
	if exists {
		return domain.CashierUser{}, fmt.Errorf("username already exists")
	}

	now := time.Now().UTC()
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("failed to hash password")
	}

	if a.userStore != nil {
		err := a.userStore.CreateUser(ctx, domain.UserAccount{
			Username:     username,
			Password:     passwordHash,
			Role:         "cashier",
			DepartmentID: departmentID,
			Active:       true,
			CreatedAt:    now,
		})
		if err != nil {
			return domain.CashierUser{}, err
		}
	}

	a.mu.Lock()
	a.accounts[username] = account{
		passwordHash: passwordHash,
		role:         "cashier",
		departmentID: departmentID,
		active:       true,
		created:      now,
	}
	a.mu.Unlock()

	return domain.CashierUser{
		Username:     username,
		Role:         "cashier",
		DepartmentID: departmentID,
		Active:       true,
		CreatedAt:    now,
	}, nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) []domain.CashierUser {
	a.refreshAccounts(ctx, false)

	a.mu.RLock()
	result := make([]domain.CashierUser, 0, len(a.accounts))
	for username, acct := range a.accounts {
		if acct.role != "cashier" {
			continue
		}
		result = append(result, domain.CashierUser{
			Username:     username,
			Role:         acct.role,
			DepartmentID: acct.departmentID,
			Active:       acct.active,
			CreatedAt:    acct.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// refreshAccounts reloads the credential cache from the user store so that
// accounts added outside this process become loginable. Legacy rows with a
// plain-text password are upgraded to bcrypt in place. Unless forced, at
// most one reload runs per refreshEvery window.
func (a *AuthManager) refreshAccounts(ctx context.Context, force bool) {
	if a.userStore == nil {
		return
	}

	a.mu.Lock()
	if !force && time.Since(a.lastRefresh) < a.refreshEvery {
		a.mu.Unlock()
		return
	}
	a.lastRefresh = time.Now()
	a.mu.Unlock()

	users, err := a.userStore.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		passwordHash := user.Password
		if !isPasswordHash(passwordHash) {
			hashed, err := hashPassword(passwordHash)
			if err != nil {
				continue
			}
			passwordHash = hashed
			_ = a.userStore.UpdateUserPassword(ctx, username, hashed)
		}
		a.accounts[username] = account{
			passwordHash: passwordHash,
			role:         user.Role,
			departmentID: user.DepartmentID,
			active:       user.Active,
			created:      user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
