package projects_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/apperrors"
	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/internal/projects"
	"github.com/auditbench/auditbench/internal/testutil"
)

func newService(t *testing.T) (*projects.Service, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return projects.NewService(db, nil, logger), db
}

func TestService_Create(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)

	t.Run("creates a draft with denormalized tool type", func(t *testing.T) {
		project, err := svc.Create(ctx, owner, projects.CreateInput{
			Name:   "Baseline audit",
			ToolID: tool.ID,
			Tags:   []string{" HTTP ", "Recon", ""},
		})
		require.NoError(t, err)

		assert.Equal(t, models.ProjectStatusDraft, project.Status)
		assert.Equal(t, models.PriorityMedium, project.Priority)
		assert.Equal(t, tool.Name, project.ToolType)
		assert.Equal(t, []string{"http", "recon"}, project.Tags)
		assert.Equal(t, "{}", project.Results)
	})

	t.Run("rejects an unknown tool", func(t *testing.T) {
		_, err := svc.Create(ctx, owner, projects.CreateInput{
			Name:   "Bad",
			ToolID: uuid.New(),
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.As(err).Kind)
	})

	t.Run("rejects an inactive tool", func(t *testing.T) {
		inactive := testutil.CreateTestTool(t, db)
		require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

		_, err := svc.Create(ctx, owner, projects.CreateInput{
			Name:   "Bad",
			ToolID: inactive.ID,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.As(err).Kind)
	})
}

func TestService_Get(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	stranger := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)
	project := testutil.CreateTestProject(t, db, owner, tool)

	t.Run("owner reads the project", func(t *testing.T) {
		got, err := svc.Get(ctx, owner, project.ID)
		require.NoError(t, err)
		assert.Equal(t, project.ID, got.ID)
	})

	t.Run("missing project is 404", func(t *testing.T) {
		_, err := svc.Get(ctx, owner, uuid.New())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.As(err).Kind)
	})

	t.Run("existing but inaccessible project is 403", func(t *testing.T) {
		_, err := svc.Get(ctx, stranger, project.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)
	})
}

func TestService_List(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	sharee := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)

	owned := testutil.CreateTestProject(t, db, owner, tool)
	shared := testutil.CreateTestProject(t, db, owner, tool)
	testutil.ShareTestProject(t, db, shared, sharee, models.PermissionView)

	// Templates never show up in the project list.
	template := testutil.CreateTestProject(t, db, owner, tool)
	require.NoError(t, db.Model(template).Update("is_template", true).Error)

	t.Run("owner sees all owned projects", func(t *testing.T) {
		list, total, err := svc.List(ctx, owner, projects.ListParams{Page: 1, PerPage: 20})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, list, 2)
	})

	t.Run("sharee sees only the shared project", func(t *testing.T) {
		list, total, err := svc.List(ctx, sharee, projects.ListParams{Page: 1, PerPage: 20})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, shared.ID, list[0].ID)
	})

	t.Run("owned filter hides shared projects", func(t *testing.T) {
		_, total, err := svc.List(ctx, sharee, projects.ListParams{Page: 1, PerPage: 20, OwnedOnly: true})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
	})

	t.Run("status filter applies", func(t *testing.T) {
		require.NoError(t, db.Model(owned).Update("status", models.ProjectStatusCompleted).Error)

		list, total, err := svc.List(ctx, owner, projects.ListParams{
			Page: 1, PerPage: 20, Status: string(models.ProjectStatusCompleted),
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, owned.ID, list[0].ID)
	})
}

func TestService_Update(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	viewer := testutil.CreateTestUser(t, db)
	editor := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)
	project := testutil.CreateTestProject(t, db, owner, tool)
	testutil.ShareTestProject(t, db, project, viewer, models.PermissionView)
	testutil.ShareTestProject(t, db, project, editor, models.PermissionEdit)

	t.Run("owner updates fields", func(t *testing.T) {
		name := "Renamed"
		status := string(models.ProjectStatusInProgress)
		got, err := svc.Update(ctx, owner, project.ID, projects.UpdateInput{
			Name:   &name,
			Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, models.ProjectStatusInProgress, got.Status)
	})

	t.Run("view share cannot update", func(t *testing.T) {
		name := "Nope"
		_, err := svc.Update(ctx, viewer, project.ID, projects.UpdateInput{Name: &name})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)
	})

	t.Run("edit share can update", func(t *testing.T) {
		results := `{"open_ports": [22, 443]}`
		got, err := svc.Update(ctx, editor, project.ID, projects.UpdateInput{Results: &results})
		require.NoError(t, err)
		assert.Equal(t, results, got.Results)
	})

	t.Run("last write wins on concurrent updates", func(t *testing.T) {
		// Two updates race without a version check; the second save
		// simply overwrites the first.
		first := "First"
		second := "Second"
		_, err := svc.Update(ctx, owner, project.ID, projects.UpdateInput{Description: &first})
		require.NoError(t, err)
		got, err := svc.Update(ctx, editor, project.ID, projects.UpdateInput{Description: &second})
		require.NoError(t, err)
		assert.Equal(t, "Second", got.Description)
	})
}

func TestService_Share(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	grantee := testutil.CreateTestUser(t, db)
	editor := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)
	project := testutil.CreateTestProject(t, db, owner, tool)
	testutil.ShareTestProject(t, db, project, editor, models.PermissionEdit)

	t.Run("owner grants view access", func(t *testing.T) {
		share, err := svc.Share(ctx, owner, project.ID, grantee.ID, models.PermissionView)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionView, share.Permission)
	})

	t.Run("re-sharing updates in place, never duplicates", func(t *testing.T) {
		share, err := svc.Share(ctx, owner, project.ID, grantee.ID, models.PermissionEdit)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionEdit, share.Permission)

		var count int64
		require.NoError(t, db.Model(&models.ProjectShare{}).
			Where("project_id = ? AND user_id = ?", project.ID, grantee.ID).
			Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("edit share cannot re-share", func(t *testing.T) {
		other := testutil.CreateTestUser(t, db)
		_, err := svc.Share(ctx, editor, project.ID, other.ID, models.PermissionView)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)
	})

	t.Run("cannot share with the owner", func(t *testing.T) {
		_, err := svc.Share(ctx, owner, project.ID, owner.ID, models.PermissionView)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.As(err).Kind)
	})

	t.Run("cannot share with an unknown user", func(t *testing.T) {
		_, err := svc.Share(ctx, owner, project.ID, uuid.New(), models.PermissionView)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.As(err).Kind)
	})

	t.Run("unshare removes the grant", func(t *testing.T) {
		require.NoError(t, svc.Unshare(ctx, owner, project.ID, grantee.ID))

		err := svc.Unshare(ctx, owner, project.ID, grantee.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.As(err).Kind)
	})
}

func TestService_AddNote(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	viewer := testutil.CreateTestUser(t, db)
	editor := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)
	project := testutil.CreateTestProject(t, db, owner, tool)
	testutil.ShareTestProject(t, db, project, viewer, models.PermissionView)
	testutil.ShareTestProject(t, db, project, editor, models.PermissionEdit)

	t.Run("editor adds a note", func(t *testing.T) {
		note, err := svc.AddNote(ctx, editor, project.ID, "Re-ran with wider port range")
		require.NoError(t, err)
		assert.Equal(t, editor.ID, note.AuthorID)
	})

	t.Run("viewer cannot add a note", func(t *testing.T) {
		_, err := svc.AddNote(ctx, viewer, project.ID, "nope")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindForbidden, apperrors.As(err).Kind)
	})
}

func TestService_Templates(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)
	project := testutil.CreateTestProject(t, db, owner, tool)

	t.Run("save as template copies configuration only", func(t *testing.T) {
		cfg := `{"ports": "1-1024"}`
		results := `{"open_ports": [80]}`
		_, err := svc.Update(ctx, owner, project.ID, projects.UpdateInput{
			Configuration: &cfg,
			Results:       &results,
		})
		require.NoError(t, err)

		template, err := svc.SaveAsTemplate(ctx, owner, project.ID, "Port baseline", "Standard sweep")
		require.NoError(t, err)
		assert.True(t, template.IsTemplate)
		assert.Equal(t, cfg, template.Configuration)
		assert.Equal(t, "{}", template.Results)
		assert.Equal(t, "Port baseline", template.TemplateName)
	})

	t.Run("private templates are invisible to others", func(t *testing.T) {
		list, err := svc.Templates(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("public templates are visible to everyone", func(t *testing.T) {
		var template models.Project
		require.NoError(t, db.Where("is_template = ?", true).First(&template).Error)
		require.NoError(t, db.Model(&template).Update("is_public", true).Error)

		list, err := svc.Templates(ctx, other)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestService_DeleteUserCascade(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	victim := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	tool := testutil.CreateTestTool(t, db)

	// victim owns a project shared with other
	owned := testutil.CreateTestProject(t, db, victim, tool)
	testutil.ShareTestProject(t, db, owned, other, models.PermissionEdit)

	// other owns a project shared with victim
	theirs := testutil.CreateTestProject(t, db, other, tool)
	testutil.ShareTestProject(t, db, theirs, victim, models.PermissionView)

	require.NoError(t, svc.DeleteUserCascade(ctx, victim.ID))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", victim.ID).Count(&userCount).Error)
	assert.EqualValues(t, 0, userCount)

	var projectCount int64
	require.NoError(t, db.Model(&models.Project{}).Where("owner_id = ?", victim.ID).Count(&projectCount).Error)
	assert.EqualValues(t, 0, projectCount)

	var shareCount int64
	require.NoError(t, db.Model(&models.ProjectShare{}).Where("user_id = ?", victim.ID).Count(&shareCount).Error)
	assert.EqualValues(t, 0, shareCount)

	// The other user's project survives untouched.
	var survivor models.Project
	assert.NoError(t, db.First(&survivor, "id = ?", theirs.ID).Error)

	// The email is free again: the row must be gone for real, not
	// soft-deleted with the unique index still occupied.
	reborn := models.User{
		Name:         "Reborn",
		Email:        victim.Email,
		PasswordHash: "x",
		Role:         models.RoleUser,
		IsActive:     true,
	}
	assert.NoError(t, db.Create(&reborn).Error)
}
