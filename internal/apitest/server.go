// Package apitest runs an in-process fake of the SalesDesk backend for tests.
// It issues real HS256 access tokens and rotating refresh tokens so the
// client's refresh-and-retry flow can be exercised end to end.
package apitest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Login response shapes the backend has been seen to return
const (
	ShapeFlat   = "flat"   // {"access_token", "refresh_token", "email"}
	ShapeShort  = "short"  // {"access", "refresh"}
	ShapeNested = "nested" // {"data": {"access", "refresh"}}
)

// Server is a fake backend. All fields prefixed with a capital letter may be
// changed by tests before issuing requests.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// LoginShape selects the login response envelope
	LoginShape string
	// ExpiredStatus is returned for rejected access tokens (401 or 404)
	ExpiredStatus int
	// RefreshDelay slows the refresh endpoint so concurrent callers overlap
	RefreshDelay time.Duration
	// FailRefresh makes the refresh endpoint answer 401
	FailRefresh bool

	secret     []byte
	generation int
	nextID     int
	users      map[int]*User
	refresh    map[string]int // refresh token -> user ID
	vehicles   map[int]*Vehicle
	sales      map[int]*Sale
	calls      map[string]int
	authHeader map[string][]string
}

// New starts a fake backend. It is closed automatically when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		LoginShape:    ShapeFlat,
		ExpiredStatus: http.StatusUnauthorized,
		secret:        []byte(randomHex(32)),
		nextID:        1,
		users:         make(map[int]*User),
		refresh:       make(map[string]int),
		vehicles:      make(map[int]*Vehicle),
		sales:         make(map[int]*Sale),
		calls:         make(map[string]int),
		authHeader:    make(map[string][]string),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.record)

	users := r.Group("/users")
	users.POST("/login/", s.login)
	users.POST("/register/", s.register)
	users.POST("/token/refresh/", s.refreshToken)
	users.GET("/all/", s.requireAuth, s.listAgents)
	users.GET("/downline/by-id/:id/", s.requireAuth, s.downline)

	vehicles := r.Group("/vehicles", s.requireAuth)
	vehicles.GET("/", s.listVehicles)
	vehicles.POST("/", s.createVehicle)
	vehicles.PATCH("/:id/", s.updateVehicle)
	vehicles.DELETE("/:id/", s.deleteVehicle)

	sales := r.Group("/sales", s.requireAuth)
	sales.GET("/", s.listSales)
	sales.POST("/", s.createSale)
	sales.PATCH("/:id/", s.updateSale)
	sales.DELETE("/:id/", s.deleteSale)

	// Binary export used to exercise blob responses
	r.GET("/reports/sales.pdf", s.requireAuth, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/pdf", []byte("%PDF-1.4 fake"))
	})

	return r
}

// record counts requests by "METHOD path" and keeps the Authorization headers seen
func (s *Server) record(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	s.calls[key]++
	s.authHeader[key] = append(s.authHeader[key], c.GetHeader("Authorization"))
	s.mu.Unlock()
	c.Next()
}

// Calls returns how many times "METHOD path" was requested
func (s *Server) Calls(methodAndPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[methodAndPath]
}

// AuthHeaders returns the Authorization headers sent to "METHOD path", in order
func (s *Server) AuthHeaders(methodAndPath string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeader[methodAndPath]...)
}

// Configure runs fn while holding the server lock
func (s *Server) Configure(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// ExpireAccessTokens invalidates every access token issued so far
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// User is an account known to the fake backend
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name,omitempty"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
	Level        int    `json:"level"`
	Earnings     string `json:"earnings"`
	TotalSales   int    `json:"total_sales"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	Role         string `json:"role"`

	SponsorID    int    `json:"-"`
	PasswordHash string `json:"-"`
}

// AddUser creates an account and returns it. sponsorID 0 means top level.
func (s *Server) AddUser(username, email, password, role string, sponsorID int) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, "", email, password, role, sponsorID)
}

func (s *Server) addUserLocked(username, fullName, email, password, role string, sponsorID int) *User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash password: %v", err))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	u := &User{
		ID:           s.nextID,
		Username:     username,
		FullName:     fullName,
		Email:        email,
		ReferralCode: strings.ToUpper(randomHex(4)),
		Level:        1,
		Earnings:     "0.00",
		CreatedAt:    now,
		UpdatedAt:    now,
		Role:         role,
		SponsorID:    sponsorID,
		PasswordHash: string(hash),
	}
	if sponsor, ok := s.users[sponsorID]; ok {
		u.Level = sponsor.Level + 1
	}
	s.nextID++
	s.users[u.ID] = u
	return u
}

type accessClaims struct {
	Email      string `json:"email"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

// IssueTokens returns a fresh access/refresh pair for a user, as if they had
// logged in
func (s *Server) IssueTokens(userID int) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.users[userID])
}

func (s *Server) issueLocked(u *User) (string, string) {
	claims := accessClaims{
		Email:      u.Email,
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("failed to sign token: %v", err))
	}

	refresh := randomHex(24)
	s.refresh[refresh] = u.ID
	return access, refresh
}

// requireAuth rejects requests without a current access token
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	s.mu.Lock()
	status := s.ExpiredStatus
	stale := claims.Generation != s.generation
	s.mu.Unlock()

	if err != nil || stale {
		c.AbortWithStatusJSON(status, gin.H{"detail": "Given token not valid for any token type"})
		return
	}

	c.Set("subject", claims.Subject)
	c.Next()
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
