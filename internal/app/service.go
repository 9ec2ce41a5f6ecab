package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"journeymap/api/internal/auth"
	"journeymap/api/internal/authpw"
	"journeymap/api/internal/config"
	"journeymap/api/internal/email"
	"journeymap/api/internal/export"
	"journeymap/api/internal/history"
	"journeymap/api/internal/journey"
	"journeymap/api/internal/logging"
	"journeymap/api/internal/oauth"
	"journeymap/api/internal/objectstore"
	"journeymap/api/internal/rbac"
	"journeymap/api/internal/realtime"
	"journeymap/api/internal/search"
	"journeymap/api/internal/session"
	"journeymap/api/internal/sheets"
	"journeymap/api/internal/store"
	"journeymap/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// sessionStore keeps refresh sessions and revoked access tokens. Redis when
// configured, Postgres otherwise.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	ConsumeRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

type dataStore interface {
	authpw.UserStore
	sessionStore

	GetUserByGoogleSub(context.Context, string) (store.User, error)
	LinkGoogleIdentity(context.Context, string, string, string, bool) error
	UpdateUserDisplayName(context.Context, string, string) error

	ResolveScope(context.Context, store.ScopeKind, string) (store.Scope, error)
	GetMemberRole(context.Context, string, string) (string, error)
	ProjectIDsForUser(context.Context, string) ([]string, error)

	ListProjectsForUser(context.Context, string) ([]store.Project, error)
	CreateProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	UpdateProject(context.Context, string, string, string) error
	DeleteProject(context.Context, string) (store.Removed, error)
	ListMembers(context.Context, string) ([]store.Member, error)
	AddMember(context.Context, string, string, string) error
	SetMemberRole(context.Context, string, string, string) error
	RemoveMember(context.Context, string, string) error

	ListBoards(context.Context, string) ([]store.Board, error)
	GetBoard(context.Context, string) (store.Board, error)
	CreateBoard(context.Context, store.Board, store.BoardContent) error
	UpdateBoard(context.Context, string, string, string) error
	DeleteBoard(context.Context, string) (store.Removed, error)
	LoadBoardTree(context.Context, string) (store.BoardTree, error)
	ReplaceBoardContent(context.Context, string, store.BoardContent) (store.Removed, error)

	CreatePhase(context.Context, store.Phase, store.Column) (store.Phase, error)
	GetPhase(context.Context, string) (store.Phase, error)
	UpdatePhase(context.Context, string, string, string) error
	DeletePhase(context.Context, string) (store.Removed, error)
	ReorderPhases(context.Context, string, []string) error
	GetColumn(context.Context, string) (store.Column, error)
	CreateColumn(context.Context, store.Column) (store.Column, error)
	DeleteColumn(context.Context, string) (store.Removed, error)
	MoveColumn(context.Context, string, string, int) (store.Column, error)

	GetBlock(context.Context, string) (store.Block, error)
	CreateBlock(context.Context, store.Block) (store.Block, error)
	UpdateBlock(context.Context, store.Block) (store.Block, error)
	MoveBlock(context.Context, string, string, int) (store.Block, error)
	DeleteBlock(context.Context, string) error

	ListComments(context.Context, string) ([]store.Comment, error)
	GetComment(context.Context, string) (store.Comment, error)
	CreateComment(context.Context, store.Comment) (store.Comment, error)
	UpdateComment(context.Context, string, string) (store.Comment, error)
	DeleteComment(context.Context, string) error
	CountComments(context.Context, string) (int, error)

	ListTags(context.Context, string) ([]store.Tag, error)
	GetTag(context.Context, string) (store.Tag, error)
	CreateTag(context.Context, store.Tag) (store.Tag, error)
	UpdateTag(context.Context, string, string, string) error
	DeleteTag(context.Context, string) error
	AddBlockTag(context.Context, string, string) error
	RemoveBlockTag(context.Context, string, string) error
	SetBlockTags(context.Context, string, []string) error
	ListBlockTags(context.Context, string) ([]store.Tag, error)

	UpsertEmotion(context.Context, store.Emotion) (store.Emotion, error)
	DeleteEmotion(context.Context, string) error

	ListAttachments(context.Context, string) ([]store.Attachment, error)
	GetAttachment(context.Context, string) (store.Attachment, error)
	CreateAttachment(context.Context, store.Attachment) (store.Attachment, error)
	DeleteAttachment(context.Context, string) error

	UpsertSheetsConnection(context.Context, store.SheetsConnection) (store.SheetsConnection, error)
	GetSheetsConnectionByBlock(context.Context, string) (store.SheetsConnection, error)
	DeleteSheetsConnectionByBlock(context.Context, string) error
	RecordSheetsFetch(context.Context, string, *string, string, time.Time) (store.SheetsConnection, error)
	ClaimDueSheetsConnections(context.Context, time.Time, int, time.Duration) ([]store.SheetsConnection, error)

	Ping(ctx context.Context) error
}

type identityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Identity, error)
	VerifyIDToken(ctx context.Context, raw string) (oauth.Identity, error)
}

type objectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key, filename string) (string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type boardHistory interface {
	Snapshot(boardID string, content any, author, label string) (history.Version, bool, error)
	List(boardID string, limit int) ([]history.Version, error)
	Get(boardID, hash string) (history.Version, []byte, error)
	Remove(boardID string) error
}

type boardExporter interface {
	Export(ctx context.Context, tree store.BoardTree, projectName string, format export.Format) (*export.Result, error)
}

// Options carries the optional collaborators. Nil fields disable the
// matching feature.
type Options struct {
	Sessions *session.RedisStore
	Redis    pinger
	Google   *oauth.Provider
	Mailer   *email.Service
	History  *history.Service
	Search   *search.Service
	Hub      *realtime.Hub
	Sheets   *sheets.Syncer
	Objects  *objectstore.Client
	Exporter *export.Service
	Logger   *logging.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	google    identityProvider
	mailer    *email.Service
	history   boardHistory
	search    *search.Service
	hub       *realtime.Hub
	sheets    *sheets.Syncer
	objects   objectStorage
	exporter  boardExporter
	redis     pinger
	logger    *logging.Logger
	now       func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore, opts Options) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  dataStore,
		passwords: authpw.NewService(dataStore),
		mailer:    opts.Mailer,
		search:    opts.Search,
		hub:       opts.Hub,
		sheets:    opts.Sheets,
		logger:    logging.OrNop(opts.Logger).Named("app"),
		now:       time.Now,
	}
	// Typed nils must not leak into the interface fields.
	if opts.Sessions != nil {
		svc.sessions = opts.Sessions
	}
	if opts.Redis != nil {
		svc.redis = opts.Redis
	}
	if opts.Google != nil {
		svc.google = opts.Google
	}
	if opts.History != nil {
		svc.history = opts.History
	}
	if opts.Objects != nil {
		svc.objects = opts.Objects
	}
	if opts.Exporter != nil {
		svc.exporter = opts.Exporter
	}
	return svc
}

func (s *Service) log() *logging.Logger {
	return logging.OrNop(s.logger)
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Service) sessionBackend() sessionStore {
	if s.sessions != nil {
		return s.sessions
	}
	return s.store
}

func (s *Service) passwordAuth() *authpw.Service {
	if s.passwords == nil {
		s.passwords = authpw.NewService(s.store)
	}
	return s.passwords
}

// SMTPConfigured reports whether account mails are actually delivered.
func (s *Service) SMTPConfigured() bool {
	return s.mailer.IsConfigured()
}

func (s *Service) publicURL(path string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		base = "http://localhost:5173"
	}
	return base + path
}

// Sessions

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.clock()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessionBackend().SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// pair is issued. A token can be exchanged only once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	sessions := s.sessionBackend()
	owner, err := sessions.ConsumeRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessionBackend().IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, current Session, refreshToken string) error {
	sessions := s.sessionBackend()
	if current.JTI != "" {
		if err := sessions.RevokeAccessToken(ctx, current.JTI, current.ExpiresAt); err != nil {
			s.log().WithRequest(ctx).Warn("revoke access token failed", "error", err)
		}
	}
	if refreshToken != "" {
		if err := sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.log().WithRequest(ctx).Warn("revoke refresh token failed", "error", err)
		}
	}
	return nil
}

// Email/password accounts

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (map[string]any, error) {
	resp, err := s.passwordAuth().SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"userId":  resp.User.ID,
		"message": "Please check your email to verify your account",
	}
	if s.SMTPConfigured() {
		link := s.publicURL("/verify-email?token=" + resp.VerificationToken)
		if err := s.mailer.SendVerificationEmail(resp.User.Email, resp.User.DisplayName, link); err != nil {
			s.log().WithRequest(ctx).Error("send verification email failed", "user_id", resp.User.ID, "error", err)
		}
	} else {
		payload["devVerificationToken"] = resp.VerificationToken
		payload["message"] = "Account created. Verify your email to continue."
	}
	return payload, nil
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	resp, err := s.passwordAuth().SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	if resp.RequiresVerify {
		return Session{}, domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before signing in", nil)
	}
	return s.issueSession(ctx, resp.User)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.passwordAuth().VerifyEmail(ctx, token)
}

func (s *Service) ResendVerification(ctx context.Context, address string) (map[string]any, error) {
	user, token, err := s.passwordAuth().ResendVerification(ctx, address)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"message": "If the account needs verification, a new email has been sent"}
	if token == "" {
		return payload, nil
	}
	if s.SMTPConfigured() {
		link := s.publicURL("/verify-email?token=" + token)
		if err := s.mailer.SendVerificationEmail(user.Email, user.DisplayName, link); err != nil {
			s.log().WithRequest(ctx).Error("send verification email failed", "user_id", user.ID, "error", err)
		}
	} else {
		payload["devVerificationToken"] = token
	}
	return payload, nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, address string) (map[string]any, error) {
	user, token, err := s.passwordAuth().RequestPasswordReset(ctx, address)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"message": "If an account exists, a reset email has been sent"}
	if token == "" {
		return payload, nil
	}
	if s.SMTPConfigured() {
		link := s.publicURL("/reset-password?token=" + token)
		if err := s.mailer.SendPasswordResetEmail(user.Email, user.DisplayName, link); err != nil {
			s.log().WithRequest(ctx).Error("send reset email failed", "user_id", user.ID, "error", err)
		}
	} else {
		payload["devResetToken"] = token
	}
	return payload, nil
}

func (s *Service) ResetPassword(ctx context.Context, req authpw.ResetPasswordRequest) error {
	return s.passwordAuth().ResetPassword(ctx, req)
}

func (s *Service) ChangePassword(ctx context.Context, current Session, currentPassword, newPassword string) error {
	return s.passwordAuth().ChangePassword(ctx, current.UserID, currentPassword, newPassword)
}

// Google sign-in

const stateTTL = 10 * time.Minute

func (s *Service) googleProvider() (identityProvider, error) {
	if s.google == nil {
		return nil, oauth.ErrNotConfigured
	}
	return s.google, nil
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.Contains(path, `\`) {
		return ""
	}
	return path
}

func (s *Service) GoogleAuthURL(redirect string) (map[string]any, error) {
	provider, err := s.googleProvider()
	if err != nil {
		return nil, err
	}
	state, err := auth.IssueState([]byte(s.cfg.JWTSecret), auth.State{
		Nonce:    util.NewID(""),
		Redirect: safeRedirect(redirect),
	}, stateTTL)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": provider.AuthURL(state), "state": state}, nil
}

// GoogleCallback completes the authorization-code flow.
func (s *Service) GoogleCallback(ctx context.Context, code, state string) (Session, string, error) {
	provider, err := s.googleProvider()
	if err != nil {
		return Session{}, "", err
	}
	parsed, err := auth.ParseState([]byte(s.cfg.JWTSecret), state)
	if err != nil {
		return Session{}, "", domainError(http.StatusBadRequest, "INVALID_STATE", "Sign-in request expired, please try again", nil)
	}
	if strings.TrimSpace(code) == "" {
		return Session{}, "", validationError("code is required")
	}
	identity, err := provider.Exchange(ctx, code)
	if err != nil {
		return Session{}, "", err
	}
	current, err := s.googleSignIn(ctx, identity)
	if err != nil {
		return Session{}, "", err
	}
	return current, parsed.Redirect, nil
}

// GoogleTokenSignIn accepts an ID token obtained by the browser directly.
func (s *Service) GoogleTokenSignIn(ctx context.Context, idToken string) (Session, error) {
	provider, err := s.googleProvider()
	if err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(idToken) == "" {
		return Session{}, validationError("idToken is required")
	}
	identity, err := provider.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Session{}, err
	}
	return s.googleSignIn(ctx, identity)
}

// googleSignIn links by subject, then by verified email, else creates a new
// verified account.
func (s *Service) googleSignIn(ctx context.Context, identity oauth.Identity) (Session, error) {
	if !identity.EmailVerified {
		return Session{}, domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Your Google email address is not verified", nil)
	}
	user, err := s.store.GetUserByGoogleSub(ctx, identity.Subject)
	if err == nil {
		return s.issueSession(ctx, user)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Session{}, err
	}

	address := authpw.NormalizeEmail(identity.Email)
	user, err = s.store.GetUserByEmail(ctx, address)
	switch {
	case err == nil:
		// An unverified account may have been registered by someone who does
		// not own the address; its password must not survive the link.
		dropPassword := !user.IsEmailVerified
		if err := s.store.LinkGoogleIdentity(ctx, user.ID, identity.Subject, identity.Picture, dropPassword); err != nil {
			return Session{}, err
		}
		if dropPassword {
			user.PasswordHash = ""
		}
		user.GoogleSub = identity.Subject
		user.IsEmailVerified = true
		s.log().WithRequest(ctx).Info("linked google identity", "user_id", user.ID)
		return s.issueSession(ctx, user)
	case !errors.Is(err, sql.ErrNoRows):
		return Session{}, err
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(address, "@", 2)[0]
	}
	user = store.User{
		ID:              util.NewID("usr"),
		DisplayName:     name,
		Email:           address,
		GoogleSub:       identity.Subject,
		AvatarURL:       identity.Picture,
		IsEmailVerified: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return Session{}, err
	}
	s.log().WithRequest(ctx).Info("created google account", "user_id", user.ID)
	return s.issueSession(ctx, user)
}

// Profile

func (s *Service) Me(ctx context.Context, current Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

func (s *Service) UpdateMe(ctx context.Context, current Session, displayName string) (map[string]any, error) {
	name := strings.TrimSpace(displayName)
	if err := journey.CheckLength("displayName", name, 1, journey.MaxNameLength); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if err := s.store.UpdateUserDisplayName(ctx, current.UserID, name); err != nil {
		return nil, err
	}
	return s.Me(ctx, current)
}

// Access

// authorize resolves the project an entity belongs to and checks the caller's
// role there. Non-members see 404 so existence does not leak.
func (s *Service) authorize(ctx context.Context, current Session, kind store.ScopeKind, id string, action rbac.Action) (store.Scope, rbac.Role, error) {
	scope, err := s.store.ResolveScope(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Scope{}, "", notFound()
		}
		return store.Scope{}, "", err
	}
	role, err := s.projectRole(ctx, current, scope.ProjectID, action)
	if err != nil {
		return store.Scope{}, "", err
	}
	return scope, role, nil
}

func (s *Service) projectRole(ctx context.Context, current Session, projectID string, action rbac.Action) (rbac.Role, error) {
	raw, err := s.store.GetMemberRole(ctx, projectID, current.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", notFound()
		}
		return "", err
	}
	role := rbac.Normalize(raw)
	if !rbac.Can(role, action) {
		return "", forbidden()
	}
	return role, nil
}

func (s *Service) publish(ctx context.Context, boardID, eventType, entityID string, current Session, payload any) {
	s.hub.Publish(ctx, realtime.NewEvent(boardID, eventType, entityID, current.UserID, payload))
}

// Health

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Ready pings every configured backend. The map holds one entry per check.
func (s *Service) Ready(ctx context.Context) (map[string]any, bool) {
	ready := true
	check := func(p pinger) map[string]any {
		if err := p.Ping(ctx); err != nil {
			ready = false
			return map[string]any{"ok": false, "error": err.Error()}
		}
		return map[string]any{"ok": true}
	}
	checks := map[string]any{"database": check(s.store)}
	if s.redis != nil {
		checks["redis"] = check(s.redis)
	}
	return checks, ready
}

func trimmedName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := journey.CheckLength(field, value, 1, journey.MaxNameLength); err != nil {
		return "", validationError("%s", err.Error())
	}
	return value, nil
}

func checkDescription(value string) error {
	if err := journey.CheckLength("description", value, 0, journey.MaxContentLength); err != nil {
		return validationError("%s", err.Error())
	}
	return nil
}
