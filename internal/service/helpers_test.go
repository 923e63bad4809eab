package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
	"github.com/evalforge/feedback-api/pkg/modelgateway"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type memoryInteractionRepo struct {
	interactions map[uint]models.Interaction
	nextID       uint
}

func newMemoryInteractionRepo() *memoryInteractionRepo {
	return &memoryInteractionRepo{
		interactions: make(map[uint]models.Interaction),
		nextID:       1,
	}
}

func (m *memoryInteractionRepo) Create(_ context.Context, interaction *models.Interaction) error {
	interaction.ID = m.nextID
	m.interactions[m.nextID] = *interaction
	m.nextID++
	return nil
}

func (m *memoryInteractionRepo) GetByID(_ context.Context, id uint) (models.Interaction, error) {
	interaction, ok := m.interactions[id]
	if !ok {
		return models.Interaction{}, gorm.ErrRecordNotFound
	}
	return interaction, nil
}

func (m *memoryInteractionRepo) Update(_ context.Context, interaction *models.Interaction) error {
	if _, ok := m.interactions[interaction.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.interactions[interaction.ID] = *interaction
	return nil
}

func (m *memoryInteractionRepo) Search(_ context.Context, filter repository.InteractionFilter) ([]models.Interaction, int64, error) {
	filtered := make([]models.Interaction, 0, len(m.interactions))
	for _, interaction := range m.interactions {
		if filter.UserID != nil && interaction.UserID != *filter.UserID {
			continue
		}
		if filter.ModelID != nil && interaction.ModelID != *filter.ModelID {
			continue
		}
		if filter.Status != nil && interaction.Status != *filter.Status {
			continue
		}
		if filter.StartedAfter != nil && interaction.StartedAt.Before(*filter.StartedAfter) {
			continue
		}
		if filter.StartedBefore != nil && interaction.StartedAt.After(*filter.StartedBefore) {
			continue
		}
		filtered = append(filtered, interaction)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})

	total := int64(len(filtered))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(filtered) {
			return []models.Interaction{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(filtered) {
			end = len(filtered)
		}
		filtered = filtered[start:end]
	}

	return filtered, total, nil
}

func (m *memoryInteractionRepo) CompletedTotalsSince(_ context.Context, since *time.Time) (map[string]int64, error) {
	totals := make(map[string]int64)
	for _, interaction := range m.interactions {
		if interaction.Status != models.InteractionStatusCompleted {
			continue
		}
		if since != nil && interaction.StartedAt.Before(*since) {
			continue
		}
		totals[interaction.UserID]++
	}
	return totals, nil
}

type memoryPromptRepo struct {
	prompts        map[uint]models.Prompt
	responses      map[uint]models.Response
	nextPromptID   uint
	nextResponseID uint
	interactions   *memoryInteractionRepo
	// sequenceFailures makes the next N sequence allocations collide.
	sequenceFailures int
}

func newMemoryPromptRepo(interactions *memoryInteractionRepo) *memoryPromptRepo {
	return &memoryPromptRepo{
		prompts:        make(map[uint]models.Prompt),
		responses:      make(map[uint]models.Response),
		nextPromptID:   1,
		nextResponseID: 1,
		interactions:   interactions,
	}
}

func (m *memoryPromptRepo) CreateWithNextSequence(_ context.Context, prompt *models.Prompt) error {
	if m.sequenceFailures > 0 {
		m.sequenceFailures--
		return repository.ErrSequenceTaken
	}

	maxSequence := 0
	for _, existing := range m.prompts {
		if existing.InteractionID == prompt.InteractionID && existing.SequenceNumber > maxSequence {
			maxSequence = existing.SequenceNumber
		}
	}

	prompt.SequenceNumber = maxSequence + 1
	prompt.ID = m.nextPromptID
	m.prompts[m.nextPromptID] = *prompt
	m.nextPromptID++
	return nil
}

func (m *memoryPromptRepo) CreateResponse(_ context.Context, response *models.Response) error {
	response.ID = m.nextResponseID
	m.responses[m.nextResponseID] = *response
	m.nextResponseID++
	return nil
}

func (m *memoryPromptRepo) GetResponse(_ context.Context, id uint) (models.Response, error) {
	response, ok := m.responses[id]
	if !ok {
		return models.Response{}, gorm.ErrRecordNotFound
	}

	if prompt, ok := m.prompts[response.PromptID]; ok {
		if m.interactions != nil {
			if interaction, ok := m.interactions.interactions[prompt.InteractionID]; ok {
				prompt.Interaction = interaction
			}
		}
		response.Prompt = prompt
	}

	return response, nil
}

func (m *memoryPromptRepo) ListByInteraction(_ context.Context, interactionID uint) ([]models.Prompt, []models.Response, error) {
	var prompts []models.Prompt
	for _, prompt := range m.prompts {
		if prompt.InteractionID == interactionID {
			prompts = append(prompts, prompt)
		}
	}

	sort.Slice(prompts, func(i, j int) bool {
		return prompts[i].SequenceNumber < prompts[j].SequenceNumber
	})

	var responses []models.Response
	for _, prompt := range prompts {
		for _, response := range m.responses {
			if response.PromptID == prompt.ID {
				responses = append(responses, response)
			}
		}
	}

	return prompts, responses, nil
}

type memoryDimensionRepo struct {
	dimensions map[uint]models.EvaluationDimension
	nextID     uint
}

func newMemoryDimensionRepo() *memoryDimensionRepo {
	return &memoryDimensionRepo{
		dimensions: make(map[uint]models.EvaluationDimension),
		nextID:     1,
	}
}

func (m *memoryDimensionRepo) Create(_ context.Context, dimension *models.EvaluationDimension) error {
	for _, existing := range m.dimensions {
		if existing.ModelID == dimension.ModelID && strings.EqualFold(existing.Name, dimension.Name) {
			return gorm.ErrDuplicatedKey
		}
	}

	dimension.ID = m.nextID
	m.dimensions[m.nextID] = *dimension
	m.nextID++
	return nil
}

func (m *memoryDimensionRepo) GetByID(_ context.Context, id uint) (models.EvaluationDimension, error) {
	dimension, ok := m.dimensions[id]
	if !ok {
		return models.EvaluationDimension{}, gorm.ErrRecordNotFound
	}
	return dimension, nil
}

func (m *memoryDimensionRepo) GetByName(_ context.Context, modelID, name string) (models.EvaluationDimension, error) {
	for _, dimension := range m.dimensions {
		if !strings.EqualFold(dimension.Name, name) {
			continue
		}
		if dimension.ModelID == modelID || dimension.ModelID == models.DimensionScopeAll {
			return dimension, nil
		}
	}
	return models.EvaluationDimension{}, gorm.ErrRecordNotFound
}

func (m *memoryDimensionRepo) ListByModel(_ context.Context, modelID string, activeOnly bool) ([]models.EvaluationDimension, error) {
	var dimensions []models.EvaluationDimension
	for _, dimension := range m.dimensions {
		if dimension.ModelID != modelID && dimension.ModelID != models.DimensionScopeAll {
			continue
		}
		if activeOnly && !dimension.Active {
			continue
		}
		dimensions = append(dimensions, dimension)
	}

	sort.Slice(dimensions, func(i, j int) bool {
		return dimensions[i].Name < dimensions[j].Name
	})

	return dimensions, nil
}

func (m *memoryDimensionRepo) Update(_ context.Context, dimension *models.EvaluationDimension) error {
	if _, ok := m.dimensions[dimension.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.dimensions[dimension.ID] = *dimension
	return nil
}

type memoryFeedbackRepo struct {
	feedback   map[uint]models.Feedback
	byResponse map[uint]uint
	nextID     uint
	dimensions *memoryDimensionRepo
	// modelByResponse backs the model filter in queue and stats queries.
	modelByResponse map[uint]string
}

func newMemoryFeedbackRepo(dimensions *memoryDimensionRepo) *memoryFeedbackRepo {
	return &memoryFeedbackRepo{
		feedback:        make(map[uint]models.Feedback),
		byResponse:      make(map[uint]uint),
		nextID:          1,
		dimensions:      dimensions,
		modelByResponse: make(map[uint]string),
	}
}

func (m *memoryFeedbackRepo) CreateWithRatings(_ context.Context, feedback *models.Feedback) error {
	if _, exists := m.byResponse[feedback.ResponseID]; exists {
		return gorm.ErrDuplicatedKey
	}

	feedback.ID = m.nextID
	for i := range feedback.Ratings {
		feedback.Ratings[i].FeedbackID = feedback.ID
	}
	m.feedback[m.nextID] = *feedback
	m.byResponse[feedback.ResponseID] = m.nextID
	m.nextID++
	return nil
}

func (m *memoryFeedbackRepo) hydrate(feedback models.Feedback) models.Feedback {
	if m.dimensions == nil {
		return feedback
	}
	for i, rating := range feedback.Ratings {
		if dimension, ok := m.dimensions.dimensions[rating.DimensionID]; ok {
			feedback.Ratings[i].Dimension = dimension
		}
	}
	return feedback
}

func (m *memoryFeedbackRepo) GetByID(_ context.Context, id uint) (models.Feedback, error) {
	feedback, ok := m.feedback[id]
	if !ok {
		return models.Feedback{}, gorm.ErrRecordNotFound
	}
	return m.hydrate(feedback), nil
}

func (m *memoryFeedbackRepo) GetByResponseID(_ context.Context, responseID uint) (models.Feedback, error) {
	id, ok := m.byResponse[responseID]
	if !ok {
		return models.Feedback{}, gorm.ErrRecordNotFound
	}
	return m.hydrate(m.feedback[id]), nil
}

func (m *memoryFeedbackRepo) ListPending(_ context.Context, filter repository.PendingFeedbackFilter) ([]models.Feedback, int64, error) {
	var pending []models.Feedback
	for _, feedback := range m.feedback {
		if feedback.Status != models.FeedbackStatusPending {
			continue
		}
		if filter.ModelID != nil && m.modelByResponse[feedback.ResponseID] != *filter.ModelID {
			continue
		}
		pending = append(pending, m.hydrate(feedback))
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})

	total := int64(len(pending))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(pending) {
			return []models.Feedback{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(pending) {
			end = len(pending)
		}
		pending = pending[start:end]
	}

	return pending, total, nil
}

func (m *memoryFeedbackRepo) CountByStatus(_ context.Context, modelID *string) (map[string]int64, error) {
	counts := map[string]int64{
		models.FeedbackStatusPending:   0,
		models.FeedbackStatusValidated: 0,
		models.FeedbackStatusRejected:  0,
	}
	for _, feedback := range m.feedback {
		if modelID != nil && m.modelByResponse[feedback.ResponseID] != *modelID {
			continue
		}
		counts[feedback.Status]++
	}
	return counts, nil
}

func (m *memoryFeedbackRepo) ContributorTotalsSince(_ context.Context, since *time.Time) ([]repository.ContributorTotals, error) {
	byUser := make(map[string]*repository.ContributorTotals)
	for _, feedback := range m.feedback {
		if since != nil && feedback.SubmittedAt.Before(*since) {
			continue
		}
		totals, ok := byUser[feedback.UserID]
		if !ok {
			totals = &repository.ContributorTotals{UserID: feedback.UserID}
			byUser[feedback.UserID] = totals
		}
		totals.Submitted++
		if feedback.Status == models.FeedbackStatusValidated {
			totals.Validated++
		}
	}

	results := make([]repository.ContributorTotals, 0, len(byUser))
	for _, totals := range byUser {
		results = append(results, *totals)
	}
	return results, nil
}

type memoryValidationRepo struct {
	records  map[uint]models.ValidationRecord
	nextID   uint
	feedback *memoryFeedbackRepo
	// finalizeErr makes the next Finalize call fail with this error.
	finalizeErr error
}

func newMemoryValidationRepo(feedback *memoryFeedbackRepo) *memoryValidationRepo {
	return &memoryValidationRepo{
		records:  make(map[uint]models.ValidationRecord),
		nextID:   1,
		feedback: feedback,
	}
}

func (m *memoryValidationRepo) Finalize(_ context.Context, record *models.ValidationRecord, feedbackStatus string) error {
	if m.finalizeErr != nil {
		err := m.finalizeErr
		m.finalizeErr = nil
		return err
	}

	if _, exists := m.records[record.FeedbackID]; exists {
		return gorm.ErrDuplicatedKey
	}

	record.ID = m.nextID
	m.records[record.FeedbackID] = *record
	m.nextID++

	if m.feedback != nil {
		if feedback, ok := m.feedback.feedback[record.FeedbackID]; ok {
			feedback.Status = feedbackStatus
			m.feedback.feedback[record.FeedbackID] = feedback
		}
	}

	return nil
}

func (m *memoryValidationRepo) GetByFeedbackID(_ context.Context, feedbackID uint) (models.ValidationRecord, error) {
	record, ok := m.records[feedbackID]
	if !ok {
		return models.ValidationRecord{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (m *memoryValidationRepo) Latencies(_ context.Context, modelID *string) ([]repository.ValidationLatency, error) {
	var latencies []repository.ValidationLatency
	for feedbackID, record := range m.records {
		feedback, ok := m.feedback.feedback[feedbackID]
		if !ok {
			continue
		}
		if modelID != nil && m.feedback.modelByResponse[feedback.ResponseID] != *modelID {
			continue
		}
		latencies = append(latencies, repository.ValidationLatency{
			SubmittedAt: feedback.SubmittedAt,
			ValidatedAt: record.ValidatedAt,
		})
	}
	return latencies, nil
}

func (m *memoryValidationRepo) ValidatorTotalsSince(_ context.Context, since *time.Time) (map[string]int64, error) {
	totals := make(map[string]int64)
	for _, record := range m.records {
		if since != nil && record.ValidatedAt.Before(*since) {
			continue
		}
		totals[record.ValidatorID]++
	}
	return totals, nil
}

type memoryDatasetRepo struct {
	entries    map[uint]models.DatasetEntry
	byFeedback map[uint]uint
	nextID     uint
	feedback   *memoryFeedbackRepo
	// createErr makes the next Create call fail with this error.
	createErr error
}

func newMemoryDatasetRepo(feedback *memoryFeedbackRepo) *memoryDatasetRepo {
	return &memoryDatasetRepo{
		entries:    make(map[uint]models.DatasetEntry),
		byFeedback: make(map[uint]uint),
		nextID:     1,
		feedback:   feedback,
	}
}

func (m *memoryDatasetRepo) Create(_ context.Context, entry *models.DatasetEntry) error {
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return err
	}

	if _, exists := m.byFeedback[entry.FeedbackID]; exists {
		return gorm.ErrDuplicatedKey
	}

	entry.ID = m.nextID
	m.entries[m.nextID] = *entry
	m.byFeedback[entry.FeedbackID] = m.nextID
	m.nextID++
	return nil
}

func (m *memoryDatasetRepo) GetByFeedbackID(_ context.Context, feedbackID uint) (models.DatasetEntry, error) {
	id, ok := m.byFeedback[feedbackID]
	if !ok {
		return models.DatasetEntry{}, gorm.ErrRecordNotFound
	}
	return m.entries[id], nil
}

func (m *memoryDatasetRepo) ListBatch(_ context.Context, modelID string, cursor *repository.DatasetCursor, limit int) ([]models.DatasetEntry, error) {
	var entries []models.DatasetEntry
	for _, entry := range m.entries {
		if modelID != "" && entry.ModelID != modelID {
			continue
		}
		if cursor != nil {
			if entry.CreatedAt.Before(cursor.CreatedAt) {
				continue
			}
			if entry.CreatedAt.Equal(cursor.CreatedAt) && entry.ID <= cursor.ID {
				continue
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (m *memoryDatasetRepo) CountByModel(_ context.Context, modelID *string) (int64, []repository.ModelEntryCount, error) {
	counts := make(map[string]int64)
	var total int64
	for _, entry := range m.entries {
		if modelID != nil && entry.ModelID != *modelID {
			continue
		}
		counts[entry.ModelID]++
		total++
	}

	breakdown := make([]repository.ModelEntryCount, 0, len(counts))
	for model, count := range counts {
		breakdown = append(breakdown, repository.ModelEntryCount{ModelID: model, Total: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].ModelID < breakdown[j].ModelID
	})

	return total, breakdown, nil
}

func (m *memoryDatasetRepo) ValidatedFeedbackWithoutEntry(_ context.Context, limit int) ([]uint, error) {
	var ids []uint
	for id, feedback := range m.feedback.feedback {
		if feedback.Status != models.FeedbackStatusValidated {
			continue
		}
		if _, materialized := m.byFeedback[id]; materialized {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

type memoryBookmarkRepo struct {
	bookmarks map[uint]models.InteractionBookmark
	nextID    uint
}

func newMemoryBookmarkRepo() *memoryBookmarkRepo {
	return &memoryBookmarkRepo{
		bookmarks: make(map[uint]models.InteractionBookmark),
		nextID:    1,
	}
}

func (m *memoryBookmarkRepo) Create(_ context.Context, bookmark *models.InteractionBookmark) error {
	for _, existing := range m.bookmarks {
		if existing.UserID == bookmark.UserID && existing.InteractionID == bookmark.InteractionID {
			return gorm.ErrDuplicatedKey
		}
	}

	bookmark.ID = m.nextID
	m.bookmarks[m.nextID] = *bookmark
	m.nextID++
	return nil
}

func (m *memoryBookmarkRepo) Update(_ context.Context, bookmark *models.InteractionBookmark) error {
	if _, ok := m.bookmarks[bookmark.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.bookmarks[bookmark.ID] = *bookmark
	return nil
}

func (m *memoryBookmarkRepo) GetByUserAndInteraction(_ context.Context, userID string, interactionID uint) (models.InteractionBookmark, error) {
	for _, bookmark := range m.bookmarks {
		if bookmark.UserID == userID && bookmark.InteractionID == interactionID {
			return bookmark, nil
		}
	}
	return models.InteractionBookmark{}, gorm.ErrRecordNotFound
}

func (m *memoryBookmarkRepo) ListByUser(_ context.Context, userID string, page, pageSize int) ([]models.InteractionBookmark, int64, error) {
	var bookmarks []models.InteractionBookmark
	for _, bookmark := range m.bookmarks {
		if bookmark.UserID == userID {
			bookmarks = append(bookmarks, bookmark)
		}
	}

	sort.Slice(bookmarks, func(i, j int) bool {
		return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
	})

	total := int64(len(bookmarks))
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * pageSize
		if start >= len(bookmarks) {
			return []models.InteractionBookmark{}, total, nil
		}
		end := start + pageSize
		if end > len(bookmarks) {
			end = len(bookmarks)
		}
		bookmarks = bookmarks[start:end]
	}

	return bookmarks, total, nil
}

func (m *memoryBookmarkRepo) Delete(_ context.Context, id uint, userID string) (int64, error) {
	bookmark, ok := m.bookmarks[id]
	if !ok || bookmark.UserID != userID {
		return 0, nil
	}
	delete(m.bookmarks, id)
	return 1, nil
}

type stubRegistry struct {
	known bool
	err   error
	calls int
}

func (s *stubRegistry) ValidateModel(context.Context, string, string) (bool, error) {
	s.calls++
	return s.known, s.err
}

type stubGateway struct {
	result modelgateway.Result
	err    error
	calls  int
	last   modelgateway.Request
}

func (s *stubGateway) Infer(_ context.Context, req modelgateway.Request) (modelgateway.Result, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return modelgateway.Result{}, s.err
	}
	return s.result, nil
}

type recordedEvent struct {
	subject string
	payload map[string]interface{}
}

type recordingPublisher struct {
	events []recordedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, payload map[string]interface{}) {
	r.events = append(r.events, recordedEvent{subject: subject, payload: payload})
}

func (r *recordingPublisher) subjects() []string {
	subjects := make([]string, 0, len(r.events))
	for _, event := range r.events {
		subjects = append(subjects, event.subject)
	}
	return subjects
}

type stubMaterializer struct {
	entry dto.DatasetEntryResponse
	err   error
	calls int
}

func (s *stubMaterializer) MaterializeFromFeedback(context.Context, uint) (dto.DatasetEntryResponse, error) {
	s.calls++
	if s.err != nil {
		return dto.DatasetEntryResponse{}, s.err
	}
	return s.entry, nil
}
