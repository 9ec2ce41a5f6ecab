package app

import (
	"context"
	"database/sql"
	"time"

	"journeymap/api/internal/config"
	"journeymap/api/internal/store"
)

// fakeStore satisfies dataStore. Methods without a function field return zero
// values.
type fakeStore struct {
	getUserByEmailFn       func(context.Context, string) (store.User, error)
	getUserByIDFn          func(context.Context, string) (store.User, error)
	getUserByGoogleSubFn   func(context.Context, string) (store.User, error)
	createUserFn           func(context.Context, store.User) error
	linkGoogleIdentityFn   func(context.Context, string, string, string, bool) error
	saveRefreshSessionFn   func(context.Context, string, string, time.Time) error
	consumeRefreshFn       func(context.Context, string) (store.User, error)
	revokeRefreshFn        func(context.Context, string) error
	revokeAccessTokenFn    func(context.Context, string, time.Time) error
	isAccessRevokedFn      func(context.Context, string) (bool, error)
	resolveScopeFn         func(context.Context, store.ScopeKind, string) (store.Scope, error)
	getMemberRoleFn        func(context.Context, string, string) (string, error)
	projectIDsForUserFn    func(context.Context, string) ([]string, error)
	createProjectFn        func(context.Context, store.Project) error
	getProjectFn           func(context.Context, string) (store.Project, error)
	addMemberFn            func(context.Context, string, string, string) error
	removeMemberFn         func(context.Context, string, string) error
	updateBoardFn          func(context.Context, string, string, string) error
	getBoardFn             func(context.Context, string) (store.Board, error)
	loadBoardTreeFn        func(context.Context, string) (store.BoardTree, error)
	moveBlockFn            func(context.Context, string, string, int) (store.Block, error)
	getCommentFn           func(context.Context, string) (store.Comment, error)
	deleteCommentFn        func(context.Context, string) error
	getTagFn               func(context.Context, string) (store.Tag, error)
	addBlockTagFn          func(context.Context, string, string) error
	listBlockTagsFn        func(context.Context, string) ([]store.Tag, error)
	pingFn                 func(context.Context) error
	deleteProjectFn        func(context.Context, string) (store.Removed, error)
	listBoardsFn           func(context.Context, string) ([]store.Board, error)
	deleteBoardFn          func(context.Context, string) (store.Removed, error)
	replaceBoardContentFn  func(context.Context, string, store.BoardContent) (store.Removed, error)
	deletePhaseFn          func(context.Context, string) (store.Removed, error)
	deleteColumnFn         func(context.Context, string) (store.Removed, error)
	createBoardFn          func(context.Context, store.Board, store.BoardContent) error
	getAttachmentFn        func(context.Context, string) (store.Attachment, error)
	createAttachmentFn     func(context.Context, store.Attachment) (store.Attachment, error)
	getSheetsConnFn        func(context.Context, string) (store.SheetsConnection, error)
	upsertSheetsConnFn     func(context.Context, store.SheetsConnection) (store.SheetsConnection, error)
	deleteSheetsConnFn     func(context.Context, string) error
	recordSheetsFetchFn    func(context.Context, string, *string, string, time.Time) (store.SheetsConnection, error)
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store: fs,
	}
}

// memberAs makes every project lookup return role.
func memberAs(role string) func(context.Context, string, string) (string, error) {
	return func(context.Context, string, string) (string, error) {
		if role == "" {
			return "", sql.ErrNoRows
		}
		return role, nil
	}
}

func boardScope(projectID, boardID string) func(context.Context, store.ScopeKind, string) (store.Scope, error) {
	return func(context.Context, store.ScopeKind, string) (store.Scope, error) {
		return store.Scope{ProjectID: projectID, BoardID: boardID}, nil
	}
}

// Users

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{ID: id, DisplayName: "Avery", Email: "avery@example.com", IsEmailVerified: true}, nil
}
func (f *fakeStore) GetUserByGoogleSub(ctx context.Context, sub string) (store.User, error) {
	if f.getUserByGoogleSubFn != nil {
		return f.getUserByGoogleSubFn(ctx, sub)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}
func (f *fakeStore) LinkGoogleIdentity(ctx context.Context, userID, sub, avatarURL string, dropPassword bool) error {
	if f.linkGoogleIdentityFn != nil {
		return f.linkGoogleIdentityFn(ctx, userID, sub, avatarURL, dropPassword)
	}
	return nil
}
func (f *fakeStore) UpdateUserDisplayName(context.Context, string, string) error { return nil }
func (f *fakeStore) UpdateUserVerificationToken(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) VerifyUserEmail(context.Context, string) error             { return nil }
func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }
func (f *fakeStore) CreatePasswordReset(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) GetPasswordReset(context.Context, string) (string, error) {
	return "", sql.ErrNoRows
}
func (f *fakeStore) MarkPasswordResetUsed(context.Context, string) error { return nil }

// Sessions

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}
func (f *fakeStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.consumeRefreshFn != nil {
		return f.consumeRefreshFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshFn != nil {
		return f.revokeRefreshFn(ctx, tokenHash)
	}
	return nil
}
func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, exp)
	}
	return nil
}
func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessRevokedFn != nil {
		return f.isAccessRevokedFn(ctx, jti)
	}
	return false, nil
}

// Access

func (f *fakeStore) ResolveScope(ctx context.Context, kind store.ScopeKind, id string) (store.Scope, error) {
	if f.resolveScopeFn != nil {
		return f.resolveScopeFn(ctx, kind, id)
	}
	return store.Scope{}, sql.ErrNoRows
}
func (f *fakeStore) GetMemberRole(ctx context.Context, projectID, userID string) (string, error) {
	if f.getMemberRoleFn != nil {
		return f.getMemberRoleFn(ctx, projectID, userID)
	}
	return "", sql.ErrNoRows
}
func (f *fakeStore) ProjectIDsForUser(ctx context.Context, userID string) ([]string, error) {
	if f.projectIDsForUserFn != nil {
		return f.projectIDsForUserFn(ctx, userID)
	}
	return nil, nil
}

// Projects

func (f *fakeStore) ListProjectsForUser(context.Context, string) ([]store.Project, error) {
	return nil, nil
}
func (f *fakeStore) CreateProject(ctx context.Context, project store.Project) error {
	if f.createProjectFn != nil {
		return f.createProjectFn(ctx, project)
	}
	return nil
}
func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{ID: projectID, Name: "Onboarding"}, nil
}
func (f *fakeStore) UpdateProject(context.Context, string, string, string) error { return nil }
func (f *fakeStore) DeleteProject(ctx context.Context, projectID string) (store.Removed, error) {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, projectID)
	}
	return store.Removed{}, nil
}
func (f *fakeStore) ListMembers(context.Context, string) ([]store.Member, error) { return nil, nil }
func (f *fakeStore) AddMember(ctx context.Context, projectID, userID, role string) error {
	if f.addMemberFn != nil {
		return f.addMemberFn(ctx, projectID, userID, role)
	}
	return nil
}
func (f *fakeStore) SetMemberRole(context.Context, string, string, string) error { return nil }
func (f *fakeStore) RemoveMember(ctx context.Context, projectID, userID string) error {
	if f.removeMemberFn != nil {
		return f.removeMemberFn(ctx, projectID, userID)
	}
	return nil
}

// Boards

func (f *fakeStore) ListBoards(ctx context.Context, projectID string) ([]store.Board, error) {
	if f.listBoardsFn != nil {
		return f.listBoardsFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) GetBoard(ctx context.Context, boardID string) (store.Board, error) {
	if f.getBoardFn != nil {
		return f.getBoardFn(ctx, boardID)
	}
	return store.Board{ID: boardID}, nil
}
func (f *fakeStore) CreateBoard(ctx context.Context, board store.Board, content store.BoardContent) error {
	if f.createBoardFn != nil {
		return f.createBoardFn(ctx, board, content)
	}
	return nil
}
func (f *fakeStore) UpdateBoard(ctx context.Context, boardID, name, description string) error {
	if f.updateBoardFn != nil {
		return f.updateBoardFn(ctx, boardID, name, description)
	}
	return nil
}
func (f *fakeStore) DeleteBoard(ctx context.Context, boardID string) (store.Removed, error) {
	if f.deleteBoardFn != nil {
		return f.deleteBoardFn(ctx, boardID)
	}
	return store.Removed{}, nil
}
func (f *fakeStore) LoadBoardTree(ctx context.Context, boardID string) (store.BoardTree, error) {
	if f.loadBoardTreeFn != nil {
		return f.loadBoardTreeFn(ctx, boardID)
	}
	return store.BoardTree{Board: store.Board{ID: boardID}}, nil
}
func (f *fakeStore) ReplaceBoardContent(ctx context.Context, boardID string, content store.BoardContent) (store.Removed, error) {
	if f.replaceBoardContentFn != nil {
		return f.replaceBoardContentFn(ctx, boardID, content)
	}
	return store.Removed{}, nil
}

// Grid

func (f *fakeStore) CreatePhase(_ context.Context, phase store.Phase, _ store.Column) (store.Phase, error) {
	return phase, nil
}
func (f *fakeStore) GetPhase(context.Context, string) (store.Phase, error)         { return store.Phase{}, nil }
func (f *fakeStore) UpdatePhase(context.Context, string, string, string) error     { return nil }
func (f *fakeStore) DeletePhase(ctx context.Context, phaseID string) (store.Removed, error) {
	if f.deletePhaseFn != nil {
		return f.deletePhaseFn(ctx, phaseID)
	}
	return store.Removed{}, nil
}
func (f *fakeStore) ReorderPhases(context.Context, string, []string) error         { return nil }
func (f *fakeStore) GetColumn(context.Context, string) (store.Column, error)       { return store.Column{}, nil }
func (f *fakeStore) CreateColumn(_ context.Context, c store.Column) (store.Column, error) {
	return c, nil
}
func (f *fakeStore) DeleteColumn(ctx context.Context, columnID string) (store.Removed, error) {
	if f.deleteColumnFn != nil {
		return f.deleteColumnFn(ctx, columnID)
	}
	return store.Removed{}, nil
}
func (f *fakeStore) MoveColumn(_ context.Context, columnID, phaseID string, position int) (store.Column, error) {
	return store.Column{ID: columnID, PhaseID: phaseID, Position: position}, nil
}

// Blocks

func (f *fakeStore) GetBlock(_ context.Context, blockID string) (store.Block, error) {
	return store.Block{ID: blockID}, nil
}
func (f *fakeStore) CreateBlock(_ context.Context, b store.Block) (store.Block, error) { return b, nil }
func (f *fakeStore) UpdateBlock(_ context.Context, b store.Block) (store.Block, error) { return b, nil }
func (f *fakeStore) MoveBlock(ctx context.Context, blockID, columnID string, position int) (store.Block, error) {
	if f.moveBlockFn != nil {
		return f.moveBlockFn(ctx, blockID, columnID, position)
	}
	return store.Block{ID: blockID, ColumnID: columnID, Position: position}, nil
}
func (f *fakeStore) DeleteBlock(context.Context, string) error { return nil }

// Comments

func (f *fakeStore) ListComments(context.Context, string) ([]store.Comment, error) { return nil, nil }
func (f *fakeStore) GetComment(ctx context.Context, commentID string) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, commentID)
	}
	return store.Comment{}, sql.ErrNoRows
}
func (f *fakeStore) CreateComment(_ context.Context, c store.Comment) (store.Comment, error) {
	return c, nil
}
func (f *fakeStore) UpdateComment(_ context.Context, commentID, content string) (store.Comment, error) {
	return store.Comment{ID: commentID, Content: content}, nil
}
func (f *fakeStore) DeleteComment(ctx context.Context, commentID string) error {
	if f.deleteCommentFn != nil {
		return f.deleteCommentFn(ctx, commentID)
	}
	return nil
}
func (f *fakeStore) CountComments(context.Context, string) (int, error) { return 0, nil }

// Tags

func (f *fakeStore) ListTags(context.Context, string) ([]store.Tag, error) { return nil, nil }
func (f *fakeStore) GetTag(ctx context.Context, tagID string) (store.Tag, error) {
	if f.getTagFn != nil {
		return f.getTagFn(ctx, tagID)
	}
	return store.Tag{}, sql.ErrNoRows
}
func (f *fakeStore) CreateTag(_ context.Context, t store.Tag) (store.Tag, error) { return t, nil }
func (f *fakeStore) UpdateTag(context.Context, string, string, string) error     { return nil }
func (f *fakeStore) DeleteTag(context.Context, string) error                     { return nil }
func (f *fakeStore) AddBlockTag(ctx context.Context, blockID, tagID string) error {
	if f.addBlockTagFn != nil {
		return f.addBlockTagFn(ctx, blockID, tagID)
	}
	return nil
}
func (f *fakeStore) RemoveBlockTag(context.Context, string, string) error  { return nil }
func (f *fakeStore) SetBlockTags(context.Context, string, []string) error { return nil }
func (f *fakeStore) ListBlockTags(ctx context.Context, blockID string) ([]store.Tag, error) {
	if f.listBlockTagsFn != nil {
		return f.listBlockTagsFn(ctx, blockID)
	}
	return nil, nil
}

// Emotions, attachments, sheets

func (f *fakeStore) UpsertEmotion(_ context.Context, e store.Emotion) (store.Emotion, error) {
	return e, nil
}
func (f *fakeStore) DeleteEmotion(context.Context, string) error { return nil }
func (f *fakeStore) ListAttachments(context.Context, string) ([]store.Attachment, error) {
	return nil, nil
}
func (f *fakeStore) GetAttachment(ctx context.Context, attachmentID string) (store.Attachment, error) {
	if f.getAttachmentFn != nil {
		return f.getAttachmentFn(ctx, attachmentID)
	}
	return store.Attachment{}, sql.ErrNoRows
}
func (f *fakeStore) CreateAttachment(ctx context.Context, a store.Attachment) (store.Attachment, error) {
	if f.createAttachmentFn != nil {
		return f.createAttachmentFn(ctx, a)
	}
	return a, nil
}
func (f *fakeStore) DeleteAttachment(context.Context, string) error { return nil }
func (f *fakeStore) UpsertSheetsConnection(ctx context.Context, c store.SheetsConnection) (store.SheetsConnection, error) {
	if f.upsertSheetsConnFn != nil {
		return f.upsertSheetsConnFn(ctx, c)
	}
	return c, nil
}
func (f *fakeStore) GetSheetsConnectionByBlock(ctx context.Context, blockID string) (store.SheetsConnection, error) {
	if f.getSheetsConnFn != nil {
		return f.getSheetsConnFn(ctx, blockID)
	}
	return store.SheetsConnection{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteSheetsConnectionByBlock(ctx context.Context, blockID string) error {
	if f.deleteSheetsConnFn != nil {
		return f.deleteSheetsConnFn(ctx, blockID)
	}
	return nil
}
func (f *fakeStore) RecordSheetsFetch(ctx context.Context, id string, value *string, fetchErr string, at time.Time) (store.SheetsConnection, error) {
	if f.recordSheetsFetchFn != nil {
		return f.recordSheetsFetchFn(ctx, id, value, fetchErr, at)
	}
	return store.SheetsConnection{ID: id, LastValue: value, LastError: fetchErr}, nil
}
func (f *fakeStore) ClaimDueSheetsConnections(context.Context, time.Time, int, time.Duration) ([]store.SheetsConnection, error) {
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}
