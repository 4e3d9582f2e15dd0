package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planogram/internal/models"
	"planogram/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- historical performance ---------------------------------------------------

func (s *Store) GetProductPerformance(ctx context.Context, productID string) (*models.ProductPerformance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, nil
	}
	var item models.ProductPerformance
	err := s.db.WithContext(ctx).
		Model(&models.ProductPerformance{}).
		Where("product_id = ?", productID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListProductPerformanceByIDs(ctx context.Context, productIDs []string) ([]models.ProductPerformance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ids := cleanStrings(productIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.ProductPerformance
	if err := s.db.WithContext(ctx).
		Model(&models.ProductPerformance{}).
		Where("product_id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListProductPerformance(ctx context.Context, params repository.ListProductPerformanceParams) ([]models.ProductPerformance, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyProductPerformanceFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.ProductPerformance
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountProductPerformance(ctx context.Context, params repository.ListProductPerformanceParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	if err := s.applyProductPerformanceFilters(ctx, params).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) applyProductPerformanceFilters(ctx context.Context, params repository.ListProductPerformanceParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ProductPerformance{})
	if params.Category != nil && strings.TrimSpace(*params.Category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(*params.Category))
	}
	if params.MinDays != nil && *params.MinDays > 0 {
		query = query.Where("days_of_data >= ?", *params.MinDays)
	}
	return query
}

func (s *Store) UpsertProductPerformance(ctx context.Context, items []models.ProductPerformance) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	rows := make([]models.ProductPerformance, 0, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" {
			continue
		}
		rows = append(rows, item)
	}
	if len(rows) == 0 {
		return nil
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"category",
			"avg_daily_revenue",
			"avg_daily_units",
			"days_of_data",
			"updated_at",
		}),
	})
	return createInBatches(tx, rows, 200)
}

// --- device fleet ---------------------------------------------------------------

func (s *Store) ListEligibleDeviceIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("eligible = ?", true).
		Order("device_id asc").
		Pluck("device_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) ListDevices(ctx context.Context, params repository.ListDevicesParams) ([]models.Device, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyDeviceFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "device_id")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Device
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDevices(ctx context.Context, params repository.ListDevicesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	if err := s.applyDeviceFilters(ctx, params).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) applyDeviceFilters(ctx context.Context, params repository.ListDevicesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Device{})
	if params.Eligible != nil {
		query = query.Where("eligible = ?", *params.Eligible)
	}
	if params.Location != nil && strings.TrimSpace(*params.Location) != "" {
		query = query.Where("location ILIKE ?", "%"+strings.TrimSpace(*params.Location)+"%")
	}
	return query
}

func (s *Store) UpsertDevices(ctx context.Context, items []models.Device) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	rows := make([]models.Device, 0, len(items))
	for _, item := range items {
		item.DeviceID = strings.TrimSpace(item.DeviceID)
		if item.DeviceID == "" {
			continue
		}
		rows = append(rows, item)
	}
	if len(rows) == 0 {
		return nil
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"location",
			"eligible",
			"metadata",
			"updated_at",
		}),
	})
	return createInBatches(tx, rows, 200)
}

// --- experiments ----------------------------------------------------------------

func (s *Store) CreateExperimentWithAssignments(ctx context.Context, exp *models.Experiment, assignments []models.ExperimentAssignment) error {
	if s == nil || s.db == nil || exp == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(exp).Error; err != nil {
			return err
		}
		if len(assignments) == 0 {
			return nil
		}
		for i := range assignments {
			assignments[i].ExperimentID = exp.ID
		}
		return createInBatches(tx, assignments, 500)
	})
}

func (s *Store) GetExperimentByName(ctx context.Context, name string) (*models.Experiment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var item models.Experiment
	err := s.db.WithContext(ctx).
		Model(&models.Experiment{}).
		Where("name = ?", name).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListExperiments(ctx context.Context, params repository.ListExperimentsParams) ([]models.Experiment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.applyExperimentFilters(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Experiment
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountExperiments(ctx context.Context, params repository.ListExperimentsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	if err := s.applyExperimentFilters(ctx, params).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) applyExperimentFilters(ctx context.Context, params repository.ListExperimentsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Experiment{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Feature != nil && strings.TrimSpace(*params.Feature) != "" {
		query = query.Where("feature = ?", strings.TrimSpace(*params.Feature))
	}
	return query
}

func (s *Store) ListExperimentsByStatus(ctx context.Context, status string) ([]models.Experiment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, nil
	}
	var items []models.Experiment
	if err := s.db.WithContext(ctx).
		Model(&models.Experiment{}).
		Where("status = ?", status).
		Order("started_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// TransitionExperimentStatus moves an experiment from one status to another in a
// single guarded UPDATE. It reports whether a row actually changed, so racing
// callers observe exactly one winner.
func (s *Store) TransitionExperimentStatus(ctx context.Context, id uint64, from, to string, updates map[string]any) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	if id == 0 || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return false, nil
	}
	next := map[string]any{
		"status":     strings.TrimSpace(to),
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		next[k] = v
	}
	res := s.db.WithContext(ctx).
		Model(&models.Experiment{}).
		Where("id = ? AND status = ?", id, strings.TrimSpace(from)).
		Updates(next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- assignments ------------------------------------------------------------------

func (s *Store) ListAssignments(ctx context.Context, experimentID uint64, group *string) ([]models.ExperimentAssignment, error) {
	if s == nil || s.db == nil || experimentID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.ExperimentAssignment{}).
		Where("experiment_id = ?", experimentID)
	if group != nil && strings.TrimSpace(*group) != "" {
		query = query.Where("group_name = ?", strings.TrimSpace(*group))
	}
	var items []models.ExperimentAssignment
	if err := query.Order("device_id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetAssignment(ctx context.Context, experimentID uint64, deviceID string) (*models.ExperimentAssignment, error) {
	if s == nil || s.db == nil || experimentID == 0 {
		return nil, nil
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, nil
	}
	var item models.ExperimentAssignment
	err := s.db.WithContext(ctx).
		Model(&models.ExperimentAssignment{}).
		Where("experiment_id = ? AND device_id = ?", experimentID, deviceID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CountAssignmentsByGroup(ctx context.Context, experimentID uint64) (map[string]int64, error) {
	if s == nil || s.db == nil || experimentID == 0 {
		return map[string]int64{}, nil
	}
	var rows []struct {
		Group string `gorm:"column:group_name"`
		Count int64  `gorm:"column:count"`
	}
	err := s.db.WithContext(ctx).
		Table("experiment_assignments").
		Select("group_name AS group_name, COUNT(*) AS count").
		Where("experiment_id = ?", experimentID).
		Group("group_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Group] = r.Count
	}
	return out, nil
}

// --- observations -----------------------------------------------------------------

func (s *Store) InsertMetricObservation(ctx context.Context, item *models.MetricObservation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) CountObservationsByMetric(ctx context.Context, experimentID uint64) (map[string]int64, error) {
	if s == nil || s.db == nil || experimentID == 0 {
		return map[string]int64{}, nil
	}
	var rows []struct {
		Metric string `gorm:"column:metric"`
		Count  int64  `gorm:"column:count"`
	}
	err := s.db.WithContext(ctx).
		Table("metric_observations").
		Select("metric AS metric, COUNT(*) AS count").
		Where("experiment_id = ?", experimentID).
		Group("metric").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Metric] = r.Count
	}
	return out, nil
}

func (s *Store) ListObservationGroupValues(ctx context.Context, experimentID uint64) ([]repository.ObservationGroupRow, error) {
	if s == nil || s.db == nil || experimentID == 0 {
		return nil, nil
	}
	var rows []repository.ObservationGroupRow
	err := s.db.WithContext(ctx).
		Table("metric_observations AS o").
		Select(`
			o.metric AS metric,
			a.group_name AS group_name,
			o.value::float8 AS value
		`).
		Joins("JOIN experiment_assignments AS a ON a.experiment_id = o.experiment_id AND a.device_id = o.device_id").
		Where("o.experiment_id = ?", experimentID).
		Order("o.id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// --- helpers ------------------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
