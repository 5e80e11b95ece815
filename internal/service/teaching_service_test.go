package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSessionGeneratesOnceThenServesFromCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	student := env.createStudent(t, 8)

	first, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, model.TierHigh, first.Tier)
	assert.NotZero(t, first.BlockID)
	assert.Equal(t, "Photosynthesis for HIGH", first.Content.Introduction)

	second, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.BlockID, second.BlockID)
	assert.Equal(t, first.Content, second.Content)

	teachingCalls, _ := env.generator.calls()
	assert.Equal(t, 1, teachingCalls)

	stored, err := env.students.FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, stored.CapabilityScore)
}

func TestStartSessionSharesLessonAcrossLearnersOfSameTier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createStudent(t, 8)
	b := env.createStudent(t, 8)

	_, err := env.teaching.StartSession(ctx, a.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	got, err := env.teaching.StartSession(ctx, b.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.True(t, got.FromCache)

	c := env.createStudent(t, 9)
	got, err = env.teaching.StartSession(ctx, c.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.False(t, got.FromCache, "a different grade is a different lesson")
}

func TestStartSessionFallsBackToChapterChunks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	student := env.createStudent(t, 8)

	var chunks []*model.SyllabusChunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, &model.SyllabusChunk{
			Grade:      7,
			Subject:    "Biology",
			Chapter:    "Photosynthesis",
			Content:    fmt.Sprintf("paragraph number %d of the chapter", i),
			ChunkOrder: i,
		})
	}
	require.NoError(t, env.syllabusRep.CreateChunks(ctx, chunks))

	_, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)

	req := env.generator.lastTeaching
	require.Len(t, req.Chunks, 3)
	for i, c := range req.Chunks {
		assert.Equal(t, i, c.ChunkOrder)
	}
	assert.Equal(t, "Anu", req.StudentName)
	assert.Equal(t, 8, req.Grade)
}

func TestSimplifyRegeneratesAndLowersTier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	student := env.createStudent(t, 8)
	env.said(t, student.ID, "why?", "what?")

	start, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.Equal(t, 60, start.Score)
	assert.Equal(t, model.TierMedium, start.Tier)

	simplified, err := env.teaching.Simplify(ctx, student.ID, "Biology", "Photosynthesis")
	require.NoError(t, err)
	assert.True(t, simplified.Simplified)
	assert.False(t, simplified.FromCache)
	assert.Equal(t, 1, simplified.ClickCount)
	assert.Equal(t, 10, simplified.SimplifyPenaltyApplied)
	assert.Equal(t, 50, simplified.Score)
	assert.Equal(t, model.TierMedium, simplified.CurrentCluster)
	assert.Equal(t, "lesson 2", simplified.Content.MainExplanation)

	// The regenerated lesson replaced the cached one for that tier.
	again, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, "lesson 2", again.Content.MainExplanation)

	for i := 0; i < 2; i++ {
		simplified, err = env.teaching.Simplify(ctx, student.ID, "Biology", "Photosynthesis")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, simplified.ClickCount)
	assert.Equal(t, 30, simplified.SimplifyPenaltyApplied)
	assert.Equal(t, 30, simplified.Score)
	assert.Equal(t, model.TierLow, simplified.CurrentCluster)

	teachingCalls, _ := env.generator.calls()
	assert.Equal(t, 4, teachingCalls)
}

func TestClearSessionRestoresTier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	student := env.createStudent(t, 8)

	for i := 0; i < 4; i++ {
		_, err := env.teaching.Simplify(ctx, student.ID, "Biology", "Photosynthesis")
		require.NoError(t, err)
	}
	require.NoError(t, env.capability.ClearSession(ctx, student.ID))

	session, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.Equal(t, 70, session.Score)
	assert.Equal(t, model.TierHigh, session.Tier)
}

func TestStartSessionUnknownStudent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.teaching.StartSession(context.Background(), uuid.NewString(), "Biology", "Photosynthesis", false)
	assert.ErrorIs(t, err, util.ErrStudentNotFound)

	_, err = env.teaching.Simplify(context.Background(), uuid.NewString(), "Biology", "Photosynthesis")
	assert.ErrorIs(t, err, util.ErrStudentNotFound)

	teachingCalls, _ := env.generator.calls()
	assert.Zero(t, teachingCalls)
}

func TestStartSessionGenerationFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	student := env.createStudent(t, 8)

	env.generator.fail(&GenerationError{Kind: GenerationStatus, Status: 503, Err: errUpstream})
	_, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.Error(t, err)
	assert.True(t, cache.IsGenerationError(err))
	assert.ErrorIs(t, err, errUpstream)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, GenerationStatus, genErr.Kind)

	env.generator.fail(nil)
	session, err := env.teaching.StartSession(ctx, student.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)
	assert.False(t, session.FromCache)
}

func TestBrowseListsChaptersForGrade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	student := env.createStudent(t, 8)

	require.NoError(t, env.syllabusRep.CreateChunks(ctx, []*model.SyllabusChunk{
		{Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Content: "plants make food from light"},
		{Grade: 8, Subject: "Biology", Chapter: "Respiration", Content: "cells release energy from food"},
		{Grade: 10, Subject: "Physics", Chapter: "Optics", Content: "light travels in straight lines"},
	}))

	index, err := env.teaching.Browse(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, "Biology", index[0].Name)
	assert.ElementsMatch(t, []string{"Photosynthesis", "Respiration"}, index[0].Chapters)

	_, err = env.teaching.Browse(ctx, uuid.NewString())
	assert.ErrorIs(t, err, util.ErrStudentNotFound)
}

func TestReportCountsLessonsServedToGrade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createStudent(t, 8)
	b := env.createStudent(t, 8)
	other := env.createStudent(t, 9)

	for _, id := range []string{a.ID, b.ID, a.ID} {
		_, err := env.teaching.StartSession(ctx, id, "Biology", "Photosynthesis", false)
		require.NoError(t, err)
	}
	_, err := env.teaching.StartSession(ctx, other.ID, "Biology", "Photosynthesis", false)
	require.NoError(t, err)

	report, err := env.studentSvc.Report(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.GradeLessonsServed)

	report, err = env.studentSvc.Report(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.GradeLessonsServed)
}
