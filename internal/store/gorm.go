package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// MappingRecord is the table row of a Mapping.
type MappingRecord struct {
	MicroID   string `gorm:"primaryKey;size:64"`
	CameraIP  string `gorm:"size:64;index"`
	Number    int    `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName overrides the gorm default.
func (MappingRecord) TableName() string { return "preset_mappings" }

// TrackingFlagRecord is one settings entry; the global switch uses GlobalTrackingKey.
type TrackingFlagRecord struct {
	Key       string `gorm:"column:flag_key;primaryKey;size:64"`
	Enabled   bool
	UpdatedAt time.Time
}

// TableName overrides the gorm default.
func (TrackingFlagRecord) TableName() string { return "tracking_flags" }

// GormStore serves both stores from a SQL database.
type GormStore struct {
	DB      *gorm.DB
	dialect string
	log     logger.Logger
}

// OpenSQLite opens or creates the sqlite database at path.
func OpenSQLite(path string, log logger.Logger) (*GormStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fileError(err, dir, "mkdir")
		}
	}
	return openGorm(sqlite.Open(path), "sqlite", log)
}

// MySQLDSN builds the driver DSN for settings.
func MySQLDSN(settings conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		settings.Username, settings.Password, settings.Host, settings.Port, settings.Database)
}

// OpenMySQL connects to the configured mysql database.
func OpenMySQL(settings conf.MySQLSettings, log logger.Logger) (*GormStore, error) {
	return OpenMySQLDSN(MySQLDSN(settings), log)
}

// OpenMySQLDSN connects with a ready DSN.
func OpenMySQLDSN(dsn string, log logger.Logger) (*GormStore, error) {
	return openGorm(mysql.Open(dsn), "mysql", log)
}

func openGorm(dialector gorm.Dialector, dialect string, log logger.Logger) (*GormStore, error) {
	if log == nil {
		log = GetLogger()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log.Module("gorm"), slowQueryThreshold),
	})
	if err != nil {
		return nil, dbError(fmt.Errorf("failed to open %s database: %w", dialect, err), "open")
	}
	return &GormStore{DB: db, dialect: dialect, log: log}, nil
}

// Init migrates the schema.
func (s *GormStore) Init(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).AutoMigrate(&MappingRecord{}, &TrackingFlagRecord{}); err != nil {
		return dbError(fmt.Errorf("%s auto-migration failed: %w", s.dialect, err), "migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

func (s *GormStore) Mappings(ctx context.Context) (map[string]Mapping, error) {
	var records []MappingRecord
	if err := s.DB.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, dbError(err, "list_mappings")
	}
	mappings := make(map[string]Mapping, len(records))
	for _, r := range records {
		mappings[r.MicroID] = r.toMapping()
	}
	return mappings, nil
}

func (s *GormStore) Mapping(ctx context.Context, uid string) (Mapping, bool, error) {
	var records []MappingRecord
	if err := s.DB.WithContext(ctx).Where("micro_id = ?", uid).Limit(1).Find(&records).Error; err != nil {
		return Mapping{}, false, dbError(err, "get_mapping")
	}
	if len(records) == 0 {
		return Mapping{}, false, nil
	}
	return records[0].toMapping(), true, nil
}

func (s *GormStore) PutMapping(ctx context.Context, m Mapping) error {
	if err := validateMapping(m); err != nil {
		return err
	}
	record := MappingRecord{MicroID: m.MicroID, CameraIP: m.CameraIP, Number: m.Number}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return dbError(err, "put_mapping")
	}
	return nil
}

func (s *GormStore) DeleteMapping(ctx context.Context, uid string) error {
	result := s.DB.WithContext(ctx).Where("micro_id = ?", uid).Delete(&MappingRecord{})
	if result.Error != nil {
		return dbError(result.Error, "delete_mapping")
	}
	if result.RowsAffected == 0 {
		return notFound(uid)
	}
	return nil
}

func (s *GormStore) TrackingFlags(ctx context.Context) (TrackingFlags, error) {
	var records []TrackingFlagRecord
	if err := s.DB.WithContext(ctx).Find(&records).Error; err != nil {
		return TrackingFlags{}, dbError(err, "list_flags")
	}
	flags := TrackingFlags{Cameras: make(map[string]bool, len(records))}
	for _, r := range records {
		if r.Key == GlobalTrackingKey {
			flags.GlobalEnabled = r.Enabled
			continue
		}
		flags.Cameras[r.Key] = r.Enabled
	}
	return flags, nil
}

func (s *GormStore) SetCameraTracking(ctx context.Context, cameraIP string, enabled bool) error {
	return s.setFlag(ctx, cameraIP, enabled)
}

func (s *GormStore) SetGlobalTracking(ctx context.Context, enabled bool) error {
	return s.setFlag(ctx, GlobalTrackingKey, enabled)
}

func (s *GormStore) setFlag(ctx context.Context, key string, enabled bool) error {
	record := TrackingFlagRecord{Key: key, Enabled: enabled}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return dbError(err, "set_flag")
	}
	return nil
}

func (r MappingRecord) toMapping() Mapping {
	return Mapping{MicroID: r.MicroID, CameraIP: r.CameraIP, Number: r.Number}
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
