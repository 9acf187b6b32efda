package routes

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"stellar_server/internal/data"
	"stellar_server/internal/game"
	"stellar_server/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// authConfiguration :
// Regroups the variables that can be used to customize the
// authentication behavior of the server.
//
// The `Secret` defines the key used to sign the access
// tokens. The default value is only suitable for local
// development and should always be overridden.
//
// The `Expiry` defines the lifetime of an access token.
// The default value is `1440` minutes.
//
// The `RateLimit` defines how many requests a single client
// address may issue per minute.
// The default value is `100`.
//
// The `RateBurst` defines the instantaneous burst tolerated
// on top of the sustained rate.
// The default value is `20`.
type authConfiguration struct {
	Secret    string
	Expiry    time.Duration
	RateLimit float64
	RateBurst int
}

// parseAuthConfiguration :
// Used to parse the configuration file and environment
// variables provided when executing this server to get the
// values of the authentication properties.
//
// Returns the parsed configuration where all non-set
// properties have their default values.
func parseAuthConfiguration() authConfiguration {
	config := authConfiguration{
		Secret:    "change-me-in-production",
		Expiry:    1440 * time.Minute,
		RateLimit: 100.0,
		RateBurst: 20,
	}

	if viper.IsSet("Auth.Secret") {
		config.Secret = viper.GetString("Auth.Secret")
	}
	if viper.IsSet("Auth.ExpiryMinutes") {
		config.Expiry = time.Duration(viper.GetInt("Auth.ExpiryMinutes")) * time.Minute
	}
	if viper.IsSet("Auth.RateLimitPerMinute") {
		config.RateLimit = viper.GetFloat64("Auth.RateLimitPerMinute")
	}
	if viper.IsSet("Auth.RateBurst") {
		config.RateBurst = viper.GetInt("Auth.RateBurst")
	}

	return config
}

// authenticator :
// Issues and validates the access tokens and enforces the
// per-client request rate. Accounts live in the database;
// when the database is disabled a small in-memory store
// takes over so that local development keeps working.
type authenticator struct {
	config authConfiguration
	bridge *data.Bridge
	log    logger.Logger

	lock     sync.Mutex
	limiters map[string]*rate.Limiter

	memUsers  map[string]data.User
	memNextID int
}

// newAuthenticator :
// Creates an authenticator backed by the input bridge.
//
// Returns the created authenticator.
func newAuthenticator(bridge *data.Bridge, log logger.Logger) *authenticator {
	return &authenticator{
		config:    parseAuthConfiguration(),
		bridge:    bridge,
		log:       log,
		limiters:  make(map[string]*rate.Limiter),
		memUsers:  make(map[string]data.User),
		memNextID: 1,
	}
}

// createUser :
// Registers a new account, hashing the input password.
//
// Returns the created user or an error.
func (a *authenticator) createUser(username string, email string, password string) (data.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return data.User{}, fmt.Errorf("unable to hash password (err: %v)", err)
	}

	if a.bridge.Enabled() {
		return a.bridge.Users().Create(username, email, string(hash))
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if _, ok := a.memUsers[username]; ok {
		return data.User{}, fmt.Errorf("username \"%s\" is already taken", username)
	}

	user := data.User{
		ID:           a.memNextID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    game.Now(),
		IsActive:     true,
	}
	a.memNextID++
	a.memUsers[username] = user

	return user, nil
}

// verifyUser :
// Checks the input credentials against the stored account.
//
// Returns the matching user or an error.
func (a *authenticator) verifyUser(username string, password string) (data.User, error) {
	var user data.User
	var err error

	if a.bridge.Enabled() {
		user, err = a.bridge.Users().FetchByUsername(username)
	} else {
		a.lock.Lock()
		stored, ok := a.memUsers[username]
		a.lock.Unlock()

		user = stored
		if !ok {
			err = data.ErrUserNotFound
		}
	}
	if err != nil {
		return data.User{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return data.User{}, fmt.Errorf("invalid credentials for \"%s\"", username)
	}

	return user, nil
}

// mintToken :
// Produces a signed access token for the input user.
//
// Returns the token along with its expiry or an error.
func (a *authenticator) mintToken(user data.User) (string, time.Time, error) {
	expiry := time.Now().Add(a.config.Expiry)

	claims := jwt.MapClaims{
		"sub":      strconv.Itoa(user.ID),
		"username": user.Username,
		"iat":      time.Now().Unix(),
		"exp":      expiry.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to sign token (err: %v)", err)
	}

	return signed, expiry, nil
}

// validateToken :
// Verifies the signature and expiry of the input token.
//
// Returns the user identifier it carries or an error.
func (a *authenticator) validateToken(raw string) (int, error) {
	token, err := jwt.Parse(
		raw,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(a.config.Secret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token (err: %v)", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("invalid token subject (err: %v)", err)
	}

	userID, err := strconv.Atoi(sub)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid token subject \"%s\"", sub)
	}

	return userID, nil
}

// userFromRequest :
// Extracts and validates the bearer token of the input
// request.
//
// Returns the authenticated user identifier or an error.
func (a *authenticator) userFromRequest(r *http.Request) (int, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0, fmt.Errorf("missing bearer token")
	}

	return a.validateToken(strings.TrimPrefix(header, "Bearer "))
}

// requireUser :
// Checks that the request carries a valid token matching
// the input user identifier. On failure the adequate status
// is answered: `401` for an invalid token and `403` for a
// mismatching user.
//
// Returns `true` when the caller may proceed.
func (a *authenticator) requireUser(w http.ResponseWriter, r *http.Request, userID int) bool {
	tokenUser, err := a.userFromRequest(r)
	if err != nil {
		answerFailure(w, http.StatusUnauthorized, "invalid or missing token")
		return false
	}

	if tokenUser != userID {
		answerFailure(w, http.StatusForbidden, "token does not match the requested user")
		return false
	}

	return true
}

// throttle :
// Middleware enforcing the per-client request rate. Clients
// are told apart by their address; requests above the rate
// answer `429`.
func (a *authenticator) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiterFor(clientAddress(r)).Allow() {
			answerFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiterFor :
// Fetches or creates the limiter of the input client.
func (a *authenticator) limiterFor(client string) *rate.Limiter {
	a.lock.Lock()
	defer a.lock.Unlock()

	limiter, ok := a.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(a.config.RateLimit/60.0), a.config.RateBurst)
		a.limiters[client] = limiter
	}

	return limiter
}

// clientAddress :
// Returns the address identifying the client of the input
// request, without the ephemeral port.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// register :
// Creates a new account from the credentials carried by the
// body.
//
// Returns the handler to execute for this route.
func (s *Server) register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(r)
		if err != nil {
			answerFailure(w, http.StatusBadRequest, err.Error())
			return
		}

		username, _ := body["username"].(string)
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)

		if len(username) < 3 || len(username) > 32 {
			answerFailure(w, http.StatusBadRequest, "username must be between 3 and 32 characters")
			return
		}
		if len(password) < 6 {
			answerFailure(w, http.StatusBadRequest, "password must be at least 6 characters")
			return
		}
		if !strings.Contains(email, "@") {
			answerFailure(w, http.StatusBadRequest, "invalid email address")
			return
		}

		user, err := s.auth.createUser(username, email, password)
		if err != nil {
			s.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to register \"%s\" (err: %v)", username, err))
			answerFailure(w, http.StatusConflict, "username or email already taken")
			return
		}

		s.log.Trace(logger.Info, module, fmt.Sprintf("Registered user \"%s\" with id %d", user.Username, user.ID))

		answerJSON(w, http.StatusCreated, userPayload(user))
	}
}

// login :
// Verifies the credentials carried by the body and answers
// a fresh access token.
//
// Returns the handler to execute for this route.
func (s *Server) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(r)
		if err != nil {
			answerFailure(w, http.StatusBadRequest, err.Error())
			return
		}

		username, _ := body["username"].(string)
		password, _ := body["password"].(string)

		user, err := s.auth.verifyUser(username, password)
		if err != nil {
			answerFailure(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, expiry, err := s.auth.mintToken(user)
		if err != nil {
			s.log.Trace(logger.Error, module, fmt.Sprintf("Unable to mint token for \"%s\" (err: %v)", username, err))
			answerFailure(w, http.StatusInternalServerError, InternalServerErrorString())
			return
		}

		if s.bridge.Enabled() {
			now := game.Now()
			s.bridge.SubmitWait(func() error {
				return s.bridge.Users().UpdateLastLogin(user.ID, now)
			})
		}

		marshalAndSend(map[string]interface{}{
			"access_token": token,
			"token_type":   "bearer",
			"expires_in":   int(time.Until(expiry).Seconds()),
			"user": map[string]interface{}{
				"id":       user.ID,
				"username": user.Username,
				"email":    user.Email,
			},
		}, w)
	}
}

// currentUser :
// Answers the identity carried by the bearer token.
//
// Returns the handler to execute for this route.
func (s *Server) currentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.userFromRequest(r)
		if err != nil {
			answerFailure(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		if s.bridge.Enabled() {
			user, err := s.bridge.Users().FetchByID(userID)
			if err == nil {
				marshalAndSend(userPayload(user), w)
				return
			}
		}

		marshalAndSend(map[string]interface{}{"id": userID}, w)
	}
}

// logout :
// Access tokens are stateless so there is nothing to revoke
// server side: the route only exists so that clients have a
// uniform lifecycle.
//
// Returns the handler to execute for this route.
func (s *Server) logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.userFromRequest(r); err != nil {
			answerFailure(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		marshalAndSend(map[string]interface{}{"message": "logged out"}, w)
	}
}

// userPayload :
// Public facet of the input user.
func userPayload(user data.User) map[string]interface{} {
	return map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"created_at": game.FormatTime(user.CreatedAt),
		"is_active":  user.IsActive,
	}
}
