package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"journeymap/api/internal/authpw"
	"journeymap/api/internal/rbac"
	"journeymap/api/internal/store"
	"journeymap/api/internal/util"
)

type ProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *Service) ListProjects(ctx context.Context, current Session) ([]map[string]any, error) {
	projects, err := s.store.ListProjectsForUser(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		items = append(items, projectView(p))
	}
	return items, nil
}

func (s *Service) CreateProject(ctx context.Context, current Session, input ProjectInput) (map[string]any, error) {
	var name, description string
	if input.Name != nil {
		name = *input.Name
	}
	name, err := trimmedName("name", name)
	if err != nil {
		return nil, err
	}
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
	}
	if err := checkDescription(description); err != nil {
		return nil, err
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        name,
		Description: description,
		CreatedBy:   current.UserID,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	created, err := s.store.GetProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	created.Role = string(rbac.RoleOwner)
	s.log().WithRequest(ctx).Info("project created", "project_id", project.ID, "user_id", current.UserID)
	return projectView(created), nil
}

func (s *Service) GetProject(ctx context.Context, current Session, projectID string) (map[string]any, error) {
	role, err := s.projectRole(ctx, current, projectID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project.Role = string(role)
	return projectView(project), nil
}

// UpdateProject applies only the fields present in input.
func (s *Service) UpdateProject(ctx context.Context, current Session, projectID string, input ProjectInput) (map[string]any, error) {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	name, description := project.Name, project.Description
	if input.Name != nil {
		if name, err = trimmedName("name", *input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
		if err := checkDescription(description); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateProject(ctx, projectID, name, description); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, current, projectID)
}

// DeleteProject removes the project with all of its boards. Board histories,
// search documents and uploaded files are cleaned up afterwards.
func (s *Service) DeleteProject(ctx context.Context, current Session, projectID string) error {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionAdmin); err != nil {
		return err
	}
	boards, err := s.store.ListBoards(ctx, projectID)
	if err != nil {
		return err
	}
	removed, err := s.store.DeleteProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, b := range boards {
		s.forgetBoard(ctx, current, b.ID)
	}
	s.removeObjects(ctx, removed.ObjectKeys)
	s.log().WithRequest(ctx).Info("project deleted", "project_id", projectID, "boards", len(boards))
	return nil
}

func (s *Service) ListMembers(ctx context.Context, current Session, projectID string) ([]map[string]any, error) {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, memberView(m))
	}
	return items, nil
}

func parseRole(raw string) (rbac.Role, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if !rbac.Valid(raw) {
		return "", validationError("role must be one of viewer, commenter, editor, owner")
	}
	return rbac.Role(raw), nil
}

// AddMember grants an existing user access and mails them an invite when SMTP
// is configured.
func (s *Service) AddMember(ctx context.Context, current Session, projectID, address, rawRole string) (map[string]any, error) {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionAdmin); err != nil {
		return nil, err
	}
	role, err := parseRole(rawRole)
	if err != nil {
		return nil, err
	}
	address = authpw.NormalizeEmail(address)
	if address == "" {
		return nil, validationError("email is required")
	}
	user, err := s.store.GetUserByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "USER_NOT_FOUND", "No account uses that email address", nil)
		}
		return nil, err
	}
	if err := s.store.AddMember(ctx, projectID, user.ID, string(role)); err != nil {
		return nil, err
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.SMTPConfigured() {
		link := s.publicURL("/projects/" + projectID)
		if err := s.mailer.SendProjectInviteEmail(user.Email, current.UserName, project.Name, string(role), link); err != nil {
			s.log().WithRequest(ctx).Warn("send invite email failed", "project_id", projectID, "user_id", user.ID, "error", err)
		}
	}
	return memberView(store.Member{
		ProjectID:   projectID,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        string(role),
		CreatedAt:   s.clock().UTC(),
	}), nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, current Session, projectID, userID, rawRole string) error {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionAdmin); err != nil {
		return err
	}
	role, err := parseRole(rawRole)
	if err != nil {
		return err
	}
	return s.store.SetMemberRole(ctx, projectID, userID, string(role))
}

// RemoveMember is owner-only, except that members may always leave.
func (s *Service) RemoveMember(ctx context.Context, current Session, projectID, userID string) error {
	action := rbac.ActionAdmin
	if userID == current.UserID {
		action = rbac.ActionRead
	}
	if _, err := s.projectRole(ctx, current, projectID, action); err != nil {
		return err
	}
	if err := s.store.RemoveMember(ctx, projectID, userID); err != nil {
		return err
	}
	boards, err := s.store.ListBoards(ctx, projectID)
	if err != nil {
		s.log().WithRequest(ctx).Warn("list boards for disconnect failed", "project_id", projectID, "error", err)
		return nil
	}
	boardIDs := make([]string, 0, len(boards))
	for _, b := range boards {
		boardIDs = append(boardIDs, b.ID)
	}
	s.hub.DisconnectUser(ctx, boardIDs, userID)
	return nil
}
