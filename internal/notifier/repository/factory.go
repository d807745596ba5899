package repository

import (
	"log/slog"

	"github.com/central-university-dev/go-forum-notifier/internal/config"
	"github.com/central-university-dev/go-forum-notifier/internal/database"
	"github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/repository/orm"
	sqlrepo "github.com/central-university-dev/go-forum-notifier/internal/notifier/repository/sql"
)

type Factory struct {
	db     *database.PostgresDB
	config *config.Config
	logger *slog.Logger
}

func NewFactory(db *database.PostgresDB, config *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		db:     db,
		config: config,
		logger: logger,
	}
}

func (f *Factory) CreatePreferenceRepository() (PreferenceRepository, error) {
	switch f.config.DatabaseAccessType {
	case config.SquirrelAccess:
		f.logger.Info("Создание ORM (Squirrel) репозитория предпочтений")
		return orm.NewPreferenceRepository(f.db), nil
	case config.SQLAccess:
		f.logger.Info("Создание SQL репозитория предпочтений")
		return sqlrepo.NewPreferenceRepository(f.db), nil
	default:
		return nil, &errors.ErrUnknownDBAccessType{AccessType: string(f.config.DatabaseAccessType)}
	}
}

func (f *Factory) CreateDigestRepository() (DigestRepository, error) {
	switch f.config.DatabaseAccessType {
	case config.SquirrelAccess:
		f.logger.Info("Создание ORM (Squirrel) репозитория дайджестов")
		return orm.NewDigestRepository(f.db), nil
	case config.SQLAccess:
		f.logger.Info("Создание SQL репозитория дайджестов")
		return sqlrepo.NewDigestRepository(f.db), nil
	default:
		return nil, &errors.ErrUnknownDBAccessType{AccessType: string(f.config.DatabaseAccessType)}
	}
}
