// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jaycherian/gcp-go-video-insight/internal/catalog"
	"github.com/jaycherian/gcp-go-video-insight/internal/core/model"
)

type CatalogSuite struct {
	suite.Suite
	ctx   context.Context
	dsn   string
	store *catalog.Store
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupTest() {
	s.ctx = context.Background()
	s.dsn = "file:" + filepath.Join(s.T().TempDir(), "catalog.db")
	store, err := catalog.Open(s.ctx, catalog.DriverSQLite, s.dsn, nil)
	s.Require().NoError(err)
	s.store = store
}

func (s *CatalogSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func finishedRun(id string, started time.Time, fatal error) *model.PipelineRun {
	run := model.NewPipelineRun(id, "/videos/"+id+".mp4", "/out/"+id, model.DefaultPipelineConfig())
	run.StartedAt = started
	run.Scenes = []model.Scene{{Index: 0, Start: 0, End: 4}, {Index: 1, Start: 4, End: 8, SourceIndex: 1}}
	run.Keyframes = []model.Keyframe{{SceneIndex: 0, Timestamp: 2, FrameIndex: 50, ImageRef: "storyboard/scene_000.jpg", Status: model.KeyframeExtracted}}
	run.Moderation = &model.ModerationReport{Findings: []model.ModerationFinding{}, Rating: model.RatingSafe, IsSafe: true}
	run.Quality = &model.QualityReport{Score: 70, Rating: "Good"}
	run.Finish(fatal)
	return run
}

func (s *CatalogSuite) TestSaveAndGetRoundTrip() {
	run := finishedRun("aaa", time.Date(2024, 10, 11, 3, 4, 8, 0, time.UTC), nil)
	s.Require().NoError(s.store.Save(s.ctx, run))

	got, err := s.store.Get(s.ctx, "aaa")
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)
	s.Equal(run.Scenes, got.Scenes)
	s.Equal(run.Keyframes, got.Keyframes)
	s.Equal(model.StateDone, got.State)
	s.Require().NotNil(got.Moderation)
	s.Equal(model.RatingSafe, got.Moderation.Rating)
}

func (s *CatalogSuite) TestGetUnknownRun() {
	_, err := s.store.Get(s.ctx, "missing")
	s.True(errors.Is(err, catalog.ErrNotFound))
}

func (s *CatalogSuite) TestSaveReplacesExistingRun() {
	run := finishedRun("bbb", time.Now().UTC(), nil)
	s.Require().NoError(s.store.Save(s.ctx, run))

	run.Quality.Score = 95
	s.Require().NoError(s.store.Save(s.ctx, run))

	list, err := s.store.List(s.ctx, catalog.Filter{})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(95, list[0].QualityScore)
}

func (s *CatalogSuite) TestListNewestFirstWithFilter() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Save(s.ctx, finishedRun("old", base, nil)))
	s.Require().NoError(s.store.Save(s.ctx, finishedRun("failed", base.Add(time.Hour), errors.New("probe failed"))))
	s.Require().NoError(s.store.Save(s.ctx, finishedRun("new", base.Add(2*time.Hour), nil)))

	all, err := s.store.List(s.ctx, catalog.Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{"new", "failed", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})
	s.Equal(2, all[0].SceneCount)
	s.Equal(1, all[0].KeyframeCount)
	s.Equal(model.RatingSafe, all[0].ModerationRating)
	s.True(all[0].Success)
	s.True(all[0].CreatedAt.Equal(base.Add(2 * time.Hour)))

	failed, err := s.store.List(s.ctx, catalog.Filter{State: model.StateFailed})
	s.Require().NoError(err)
	s.Require().Len(failed, 1)
	s.Equal("probe failed", failed[0].Error)
	s.False(failed[0].Success)

	page, err := s.store.List(s.ctx, catalog.Filter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal("failed", page[0].ID)
}

func (s *CatalogSuite) TestEmptyListIsNotNil() {
	list, err := s.store.List(s.ctx, catalog.Filter{State: model.StateDone})
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}

func (s *CatalogSuite) TestDelete() {
	s.Require().NoError(s.store.Save(s.ctx, finishedRun("ccc", time.Now().UTC(), nil)))
	s.Require().NoError(s.store.Delete(s.ctx, "ccc"))
	s.ErrorIs(s.store.Delete(s.ctx, "ccc"), catalog.ErrNotFound)
}

func (s *CatalogSuite) TestReopenKeepsRunsAndSkipsAppliedMigrations() {
	s.Require().NoError(s.store.Save(s.ctx, finishedRun("ddd", time.Now().UTC(), nil)))
	s.Require().NoError(s.store.Close())

	reopened, err := catalog.Open(s.ctx, catalog.DriverSQLite, s.dsn, nil)
	s.Require().NoError(err)
	s.store = reopened

	_, err = s.store.Get(s.ctx, "ddd")
	s.NoError(err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := catalog.Open(context.Background(), "mysql", "dsn", nil)
	if err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}
