package store_test

import (
	"context"
	"testing"

	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/JonMunkholm/sldstore/internal/store"
	"github.com/JonMunkholm/sldstore/internal/store/storetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigOwner(t *testing.T) {
	s, db := newStore(t, store.Options{})
	cfg, _ := seedConfig(t, s, db)
	ctx := context.Background()

	owner, found, err := s.GetConfigOwner(ctx, cfg.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cfg.UUID, owner)
	assert.NotEqual(t, uuid.Nil, owner)

	owner, found, err = s.GetConfigOwner(ctx, cfg.ID+100)
	require.NoError(t, err, "absence is not an error")
	assert.False(t, found)
	assert.Equal(t, uuid.Nil, owner)
}

func TestGetConfigOwner_Malformed(t *testing.T) {
	s, db := newStore(t, store.Options{})
	id := db.Seed("configs", storetest.Row{"template_id": int64(1), "uuid": "not-a-uuid"})

	_, found, err := s.GetConfigOwner(context.Background(), id)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestGetTemplate(t *testing.T) {
	s, _ := newStore(t, store.Options{})
	ctx := context.Background()

	id, err := s.IngestTemplate(ctx, "<sld>body</sld>", "roads", nil)
	require.NoError(t, err)

	tests := []struct {
		name        string
		id          int64
		withContent bool
		wantContent string
		wantErr     error
	}{
		{"with content", id, true, "<sld>body</sld>", nil},
		{"without content", id, false, "", nil},
		{"unknown id", id + 1, false, "", store.ErrNotFound},
		{"zero id", 0, false, "", store.ErrNotFound},
		{"negative id", -3, true, "", store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetTemplate(ctx, tt.id, tt.withContent)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "roads", got.Name)
			assert.Equal(t, tt.wantContent, got.Content)
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestListTemplates(t *testing.T) {
	s, _ := newStore(t, store.Options{})
	ctx := context.Background()

	empty, err := s.ListTemplates(ctx, false)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.IngestTemplate(ctx, "content-"+name, name, nil)
		require.NoError(t, err)
	}

	got, err := s.ListTemplates(ctx, true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, got[i].Name)
		assert.Equal(t, "content-"+name, got[i].Content)
	}
	assert.Less(t, got[0].ID, got[1].ID)
}

func TestGetFeatureTypes(t *testing.T) {
	s, _ := newStore(t, store.Options{})
	ctx := context.Background()

	id, err := s.IngestTemplate(ctx, "", "t", []flatline.Line{
		flatline.FeatureType("first", "First"),
		flatline.FeatureType("second", "Second"),
	})
	require.NoError(t, err)
	other, err := s.IngestTemplate(ctx, "", "other", []flatline.Line{
		flatline.FeatureType("elsewhere", ""),
	})
	require.NoError(t, err)

	fts, err := s.GetFeatureTypes(ctx, id)
	require.NoError(t, err)
	require.Len(t, fts, 2)
	assert.Equal(t, "first", fts[0].Name)
	assert.Equal(t, "First", fts[0].Title)
	assert.Equal(t, "second", fts[1].Name)
	assert.Equal(t, id, fts[1].TemplateID)

	fts, err = s.GetFeatureTypes(ctx, other+1)
	require.NoError(t, err)
	assert.Empty(t, fts)
}

func TestCreateConfig(t *testing.T) {
	s, _ := newStore(t, store.Options{})
	ctx := context.Background()

	templateID, err := s.IngestTemplate(ctx, "", "t", nil)
	require.NoError(t, err)
	owner := uuid.New()

	cfg, err := s.CreateConfig(ctx, store.NewConfig{
		TemplateID: templateID,
		Owner:      owner,
		Name:       "night mode",
		OutputPath: "styles/night.sld",
	})
	require.NoError(t, err)
	assert.Positive(t, cfg.ID)
	assert.Equal(t, templateID, cfg.TemplateID)
	assert.Equal(t, owner, cfg.UUID)
	assert.Equal(t, "night mode", cfg.Name)
	assert.Equal(t, "styles/night.sld", cfg.OutputPath)

	values, err := s.GetConfigValues(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCreateConfig_UnknownTemplate(t *testing.T) {
	s, db := newStore(t, store.Options{})

	_, err := s.CreateConfig(context.Background(), store.NewConfig{TemplateID: 12, Owner: uuid.New()})

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, db.Count("configs"))
}
