package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tradebot/internal/models"
)

// BotStateRepository - работа с таблицей bot_state.
// Таблица содержит единственную строку (id=1): durable-срез состояния
// бота, который обязан переживать рестарт процесса.
type BotStateRepository struct {
	db *sql.DB
}

// NewBotStateRepository создает новый экземпляр репозитория
func NewBotStateRepository(db *sql.DB) *BotStateRepository {
	return &BotStateRepository{db: db}
}

// Get возвращает сохраненное состояние (всегда id=1, одна запись)
func (r *BotStateRepository) Get() (bool, *models.EntryDetails, error) {
	query := `
		SELECT in_position, entry_details
		FROM bot_state
		WHERE id = 1`

	var inPosition bool
	var entryJSON []byte
	err := r.db.QueryRow(query).Scan(&inPosition, &entryJSON)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Если записи нет, создаем ее с дефолтными значениями
			if err := r.createDefault(); err != nil {
				return false, nil, err
			}
			return false, nil, nil
		}
		return false, nil, err
	}

	if len(entryJSON) == 0 {
		return inPosition, nil, nil
	}

	var entry models.EntryDetails
	if err := json.Unmarshal(entryJSON, &entry); err != nil {
		return false, nil, err
	}

	return inPosition, &entry, nil
}

// SaveBotState сохраняет durable-срез состояния.
// Вызывается синхронно на каждое изменение позиции, до принятия
// следующего торгового решения.
func (r *BotStateRepository) SaveBotState(inPosition bool, entry *models.EntryDetails) error {
	var entryJSON []byte
	if entry != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		entryJSON = data
	}

	query := `
		INSERT INTO bot_state (id, in_position, entry_details, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET in_position = $1, entry_details = $2, updated_at = $3`

	_, err := r.db.Exec(query, inPosition, entryJSON, time.Now())
	return err
}

// createDefault создает запись с дефолтными значениями
func (r *BotStateRepository) createDefault() error {
	query := `
		INSERT INTO bot_state (id, in_position, entry_details, updated_at)
		VALUES (1, false, NULL, $1)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(query, time.Now())
	return err
}
