package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"epilogue/internal/domain"
	"epilogue/internal/microblog"
)

// ─────────────────────────────────────────────────────────────
// Session Service: sign-in links and the stored session
// ─────────────────────────────────────────────────────────────

const (
	alertSignInTitle = "Error signing in"
	msgNetwork       = "Couldn't reach micro.blog. Check your connection and try again."
)

// AccountAPI is the part of the micro.blog client used during sign-in.
type AccountAPI interface {
	VerifyToken(ctx context.Context, token string) (microblog.Verification, error)
	ListDestinations(ctx context.Context, token string) ([]domain.Blog, error)
}

// SignInError is returned when micro.blog rejects a sign-in token.
type SignInError struct {
	Reason string
}

func (e *SignInError) Error() string {
	return "sign in: " + e.Reason
}

type SessionService struct {
	prefs   domain.PreferenceStore
	api     AccountAPI
	emitter EventEmitter
	nav     Navigator
	logger  *zap.Logger
	grace   time.Duration
}

// NewSessionService creates a SessionService. signOutGrace is the pause between
// clearing the session and showing the sign-in screen.
func NewSessionService(
	prefs domain.PreferenceStore,
	api AccountAPI,
	emitter EventEmitter,
	nav Navigator,
	logger *zap.Logger,
	signOutGrace time.Duration,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		prefs:   prefs,
		api:     api,
		emitter: emitter,
		nav:     nav,
		logger:  logger.Named("session"),
		grace:   signOutGrace,
	}
}

// TokenFromURL extracts the sign-in token from a deep link: the final
// "/"-delimited segment, ignoring any query or fragment.
func TokenFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if _, err := url.Parse(raw); err != nil {
		return "", false
	}
	s := raw
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return "", false
	}
	token, err := url.PathUnescape(s[i+1:])
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// HandleURL signs in with the token carried by a deep link. Malformed links are ignored.
func (s *SessionService) HandleURL(ctx context.Context, link string) error {
	token, ok := TokenFromURL(link)
	if !ok {
		s.logger.Debug("ignoring link without token", zap.String("url", link))
		return nil
	}
	return s.Verify(ctx, token)
}

// Verify exchanges a sign-in token for an auth token and stores the session.
func (s *SessionService) Verify(ctx context.Context, token string) error {
	v, err := s.api.VerifyToken(ctx, token)
	if err != nil {
		var rejected *microblog.VerifyError
		if errors.As(err, &rejected) {
			s.logger.Info("sign-in rejected", zap.String("reason", rejected.Reason))
			s.alert(ctx, rejected.Reason)
			return &SignInError{Reason: rejected.Reason}
		}
		s.logger.Error("verify token", zap.Error(err))
		s.alert(ctx, msgNetwork)
		return fmt.Errorf("verify token: %w", err)
	}
	if v.Token == "" {
		reason := "micro.blog did not return a token."
		s.alert(ctx, reason)
		return &SignInError{Reason: reason}
	}

	var blogID string
	hasBlog, err := s.prefs.Get(ctx, domain.KeyCurrentBlogID, &blogID)
	if err != nil {
		s.logger.Warn("read current blog", zap.Error(err))
	}

	if err := s.prefs.Set(ctx, domain.KeyAuthToken, v.Token); err != nil {
		return fmt.Errorf("save auth token: %w", err)
	}
	if err := s.prefs.Set(ctx, domain.KeyCurrentUsername, v.Username); err != nil {
		return fmt.Errorf("save username: %w", err)
	}

	if !hasBlog || blogID == "" {
		s.loadDefaultBlog(ctx, v.Token)
	}

	sess, err := s.Current(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("signed in", zap.String("username", v.Username))
	s.emitter.Emit(ctx, EventSignedIn, SessionView(sess))

	if s.nav.Current().Screen == ScreenSignIn {
		s.nav.Back(ctx)
	}
	return nil
}

// loadDefaultBlog stores the default posting destination. Failures leave the
// user signed in without one.
func (s *SessionService) loadDefaultBlog(ctx context.Context, token string) {
	blogs, err := s.api.ListDestinations(ctx, token)
	if err != nil {
		s.logger.Warn("load blogs", zap.Error(err))
		return
	}
	blog, ok := microblog.DefaultBlog(blogs)
	if !ok {
		s.logger.Debug("no default blog", zap.Int("destinations", len(blogs)))
		return
	}
	if err := s.prefs.Set(ctx, domain.KeyCurrentBlogID, blog.UID); err != nil {
		s.logger.Warn("save blog id", zap.Error(err))
		return
	}
	if err := s.prefs.Set(ctx, domain.KeyCurrentBlogName, blog.Name); err != nil {
		s.logger.Warn("save blog name", zap.Error(err))
	}
}

// SignOut forgets the auth token and username, then shows the sign-in screen
// once the grace delay has passed. Confirmation is up to the caller.
func (s *SessionService) SignOut(ctx context.Context) error {
	if err := s.prefs.Remove(ctx, domain.KeyAuthToken); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if err := s.prefs.Remove(ctx, domain.KeyCurrentUsername); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.logger.Info("signed out")
	s.emitter.Emit(ctx, EventSignedOut, nil)

	if s.grace > 0 {
		t := time.NewTimer(s.grace)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.nav.Navigate(ctx, ScreenSignIn, nil)
	return nil
}

// Token returns the stored auth token, or "" when signed out.
func (s *SessionService) Token(ctx context.Context) (string, error) {
	var token string
	if _, err := s.prefs.Get(ctx, domain.KeyAuthToken, &token); err != nil {
		return "", fmt.Errorf("read auth token: %w", err)
	}
	return token, nil
}

// SignedIn reports whether an auth token is stored. Read errors count as signed out.
func (s *SessionService) SignedIn(ctx context.Context) bool {
	token, err := s.Token(ctx)
	if err != nil {
		s.logger.Warn("check session", zap.Error(err))
		return false
	}
	return token != ""
}

// RequireToken returns the auth token, or sends the user to the sign-in
// screen and reports ok == false when there is none.
func (s *SessionService) RequireToken(ctx context.Context) (token string, ok bool, err error) {
	token, err = s.Token(ctx)
	if err != nil {
		return "", false, err
	}
	if token == "" {
		s.nav.Navigate(ctx, ScreenSignIn, nil)
		return "", false, nil
	}
	return token, true, nil
}

// Current loads the whole session from the preference store.
func (s *SessionService) Current(ctx context.Context) (domain.Session, error) {
	var sess domain.Session
	fields := []struct {
		key string
		dst *string
	}{
		{domain.KeyAuthToken, &sess.AuthToken},
		{domain.KeyCurrentUsername, &sess.Username},
		{domain.KeyCurrentBlogID, &sess.BlogID},
		{domain.KeyCurrentBlogName, &sess.BlogName},
	}
	for _, f := range fields {
		if _, err := s.prefs.Get(ctx, f.key, f.dst); err != nil {
			return domain.Session{}, fmt.Errorf("load session: %w", err)
		}
	}
	return sess, nil
}

func (s *SessionService) alert(ctx context.Context, message string) {
	s.emitter.Emit(ctx, EventAlert, Alert{Title: alertSignInTitle, Message: message})
}

// SessionInfo is the session as shown to a frontend. The token never leaves the process.
type SessionInfo struct {
	SignedIn  bool   `json:"signedIn"`
	Username  string `json:"username"`
	BlogID    string `json:"blogId"`
	BlogName  string `json:"blogName"`
	AvatarURL string `json:"avatarUrl"`
}

func SessionView(s domain.Session) SessionInfo {
	return SessionInfo{
		SignedIn:  s.SignedIn(),
		Username:  s.Username,
		BlogID:    s.BlogID,
		BlogName:  s.BlogName,
		AvatarURL: s.AvatarURL(),
	}
}
