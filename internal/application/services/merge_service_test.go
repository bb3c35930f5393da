package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labtrail/backend/internal/domain/entities"
	apperrors "github.com/labtrail/backend/pkg/errors"
)

type mergeFixture struct {
	service    *MergeService
	recordRepo *MockTestRecordRepo
	lineRepo   *MockTestResultLineRepo
	eventBus   *MockEventBus
}

func setupMerge() *mergeFixture {
	f := &mergeFixture{
		recordRepo: new(MockTestRecordRepo),
		lineRepo:   new(MockTestResultLineRepo),
		eventBus:   new(MockEventBus),
	}
	f.service = NewMergeService(f.recordRepo, f.lineRepo, f.eventBus)
	return f
}

func headerFixture(id, subjectID, hospital string, date time.Time) *entities.TestRecordHeader {
	return &entities.TestRecordHeader{ID: id, SubjectID: subjectID, HospitalName: hospital, TestDate: date}
}

func lineFixture(id, recordID, canonicalID string, value *float64) *entities.TestResultLine {
	return &entities.TestResultLine{ID: id, RecordID: recordID, CanonicalID: canonicalID, Value: value}
}

func TestPlanMerge_ReportsAllConflicts(t *testing.T) {
	f := setupMerge()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	f.recordRepo.On("GetHeader", mock.Anything, "rec-a").
		Return(headerFixture("rec-a", "subject-1", "St. Mary's", date), nil)
	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-1", "City Clinic", date.AddDate(0, 0, 1)), nil)

	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-a").Return([]*entities.TestResultLine{
		lineFixture("line-1", "rec-a", "item-bun", refPtr(25)),
		lineFixture("line-2", "rec-a", "item-glucose", refPtr(95)),
		lineFixture("line-3", "rec-a", "item-wbc", refPtr(7.5)),
	}, nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-b").Return([]*entities.TestResultLine{
		lineFixture("line-4", "rec-b", "item-bun", refPtr(18)),
		lineFixture("line-5", "rec-b", "item-glucose", refPtr(95)),
	}, nil)

	plan, err := f.service.PlanMerge(context.Background(), "rec-a", "rec-b")

	require.NoError(t, err)
	assert.True(t, plan.DateConflict)
	assert.True(t, plan.HospitalConflict)
	require.Len(t, plan.ItemConflicts, 1)
	assert.Equal(t, "item-bun", plan.ItemConflicts[0].CanonicalID)
	assert.Equal(t, 25.0, *plan.ItemConflicts[0].SourceValue)
	assert.Equal(t, 18.0, *plan.ItemConflicts[0].TargetValue)
}

func TestPlanMerge_NoConflictsWhenValuesAgree(t *testing.T) {
	f := setupMerge()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	f.recordRepo.On("GetHeader", mock.Anything, "rec-a").
		Return(headerFixture("rec-a", "subject-1", "St. Mary's", date), nil)
	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-1", "St. Mary's", date.Add(4*time.Hour)), nil)

	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-a").Return([]*entities.TestResultLine{
		lineFixture("line-1", "rec-a", "item-bun", refPtr(25)),
	}, nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-b").Return([]*entities.TestResultLine{
		lineFixture("line-2", "rec-b", "item-bun", refPtr(25)),
	}, nil)

	plan, err := f.service.PlanMerge(context.Background(), "rec-a", "rec-b")

	require.NoError(t, err)
	assert.False(t, plan.DateConflict)
	assert.False(t, plan.HospitalConflict)
	assert.Empty(t, plan.ItemConflicts)
}

func TestPlanMerge_RejectsSelfMerge(t *testing.T) {
	f := setupMerge()

	_, err := f.service.PlanMerge(context.Background(), "rec-a", "rec-a")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPlanMerge_RejectsDifferentSubjects(t *testing.T) {
	f := setupMerge()
	date := time.Now()

	f.recordRepo.On("GetHeader", mock.Anything, "rec-a").
		Return(headerFixture("rec-a", "subject-1", "", date), nil)
	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-2", "", date), nil)

	_, err := f.service.PlanMerge(context.Background(), "rec-a", "rec-b")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExecuteMerge_RejectsUnresolvedConflicts(t *testing.T) {
	f := setupMerge()

	plan := &entities.MergePlan{
		SourceID: "rec-a",
		TargetID: "rec-b",
		ItemConflicts: []entities.ItemConflict{
			{CanonicalID: "item-bun", SourceValue: refPtr(25), TargetValue: refPtr(18)},
		},
	}

	err := f.service.ExecuteMerge(context.Background(), plan, time.Time{}, "", nil)

	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeConflict, appErr.Type)
	f.recordRepo.AssertNotCalled(t, "UpdateHeader", mock.Anything, mock.Anything)
	f.recordRepo.AssertNotCalled(t, "DeleteHeader", mock.Anything, mock.Anything)
}

func TestExecuteMerge_AppliesTargetHeaderValues(t *testing.T) {
	f := setupMerge()
	oldDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	wantDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	plan := &entities.MergePlan{SourceID: "rec-a", TargetID: "rec-b", DateConflict: true, HospitalConflict: true}

	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-1", "St. Mary's", oldDate), nil)
	f.recordRepo.On("UpdateHeader", mock.Anything, mock.MatchedBy(func(h *entities.TestRecordHeader) bool {
		return h.ID == "rec-b" && h.TestDate.Equal(wantDate) && h.HospitalName == "City Clinic"
	})).Return(nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-a").Return([]*entities.TestResultLine{}, nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-b").Return([]*entities.TestResultLine{}, nil)
	f.recordRepo.On("DeleteHeader", mock.Anything, "rec-a").Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := f.service.ExecuteMerge(context.Background(), plan, wantDate, "City Clinic", nil)

	require.NoError(t, err)
	f.recordRepo.AssertExpectations(t)
}

func TestExecuteMerge_UseSourceReplacesTargetLine(t *testing.T) {
	f := setupMerge()
	date := time.Now()

	plan := &entities.MergePlan{
		SourceID: "rec-a",
		TargetID: "rec-b",
		ItemConflicts: []entities.ItemConflict{
			{CanonicalID: "item-bun", SourceValue: refPtr(25), TargetValue: refPtr(18)},
		},
	}

	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-1", "", date), nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-a").Return([]*entities.TestResultLine{
		lineFixture("line-1", "rec-a", "item-bun", refPtr(25)),
		lineFixture("line-2", "rec-a", "item-wbc", refPtr(7.5)),
	}, nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-b").Return([]*entities.TestResultLine{
		lineFixture("line-3", "rec-b", "item-bun", refPtr(18)),
	}, nil)

	f.recordRepo.On("UpdateHeader", mock.Anything, mock.Anything).Return(nil)
	f.lineRepo.On("DeleteByRecordAndCanonical", mock.Anything, "rec-b", "item-bun").Return(nil)
	f.lineRepo.On("ReassignToRecord", mock.Anything, "line-1", "rec-b").Return(nil)
	f.lineRepo.On("ReassignToRecord", mock.Anything, "line-2", "rec-b").Return(nil)
	f.recordRepo.On("DeleteHeader", mock.Anything, "rec-a").Return(nil)
	f.eventBus.On("Publish", mock.Anything, entities.RecordEventChannel, mock.MatchedBy(func(e *entities.RecordEvent) bool {
		return e.Type == entities.RecordEventMerged && e.RecordID == "rec-b"
	})).Return(nil)

	err := f.service.ExecuteMerge(context.Background(), plan, date, "", []entities.MergeResolution{
		{CanonicalID: "item-bun", UseSource: true},
	})

	require.NoError(t, err)
	f.lineRepo.AssertExpectations(t)
	f.recordRepo.AssertExpectations(t)
	f.eventBus.AssertExpectations(t)
}

func TestExecuteMerge_UseTargetDropsSourceLine(t *testing.T) {
	f := setupMerge()
	date := time.Now()

	plan := &entities.MergePlan{
		SourceID: "rec-a",
		TargetID: "rec-b",
		ItemConflicts: []entities.ItemConflict{
			{CanonicalID: "item-bun", SourceValue: refPtr(25), TargetValue: refPtr(18)},
		},
	}

	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-1", "", date), nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-a").Return([]*entities.TestResultLine{
		lineFixture("line-1", "rec-a", "item-bun", refPtr(25)),
	}, nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-b").Return([]*entities.TestResultLine{
		lineFixture("line-3", "rec-b", "item-bun", refPtr(18)),
	}, nil)

	f.recordRepo.On("UpdateHeader", mock.Anything, mock.Anything).Return(nil)
	f.lineRepo.On("DeleteByRecordAndCanonical", mock.Anything, "rec-a", "item-bun").Return(nil)
	f.recordRepo.On("DeleteHeader", mock.Anything, "rec-a").Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := f.service.ExecuteMerge(context.Background(), plan, date, "", []entities.MergeResolution{
		{CanonicalID: "item-bun", UseSource: false},
	})

	require.NoError(t, err)
	f.lineRepo.AssertNotCalled(t, "ReassignToRecord", mock.Anything, mock.Anything, mock.Anything)
	f.lineRepo.AssertExpectations(t)
}

func TestExecuteMerge_AgreedValuesDropSourceCopy(t *testing.T) {
	f := setupMerge()
	date := time.Now()

	plan := &entities.MergePlan{SourceID: "rec-a", TargetID: "rec-b"}

	f.recordRepo.On("GetHeader", mock.Anything, "rec-b").
		Return(headerFixture("rec-b", "subject-1", "", date), nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-a").Return([]*entities.TestResultLine{
		lineFixture("line-1", "rec-a", "item-bun", refPtr(25)),
	}, nil)
	f.lineRepo.On("ListByRecordID", mock.Anything, "rec-b").Return([]*entities.TestResultLine{
		lineFixture("line-3", "rec-b", "item-bun", refPtr(25)),
	}, nil)

	f.recordRepo.On("UpdateHeader", mock.Anything, mock.Anything).Return(nil)
	f.lineRepo.On("DeleteByRecordAndCanonical", mock.Anything, "rec-a", "item-bun").Return(nil)
	f.recordRepo.On("DeleteHeader", mock.Anything, "rec-a").Return(nil)
	f.eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := f.service.ExecuteMerge(context.Background(), plan, date, "", nil)

	require.NoError(t, err)
	f.lineRepo.AssertExpectations(t)
}
