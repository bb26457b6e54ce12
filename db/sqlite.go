// Package db 自选股与分析历史的SQLite持久化
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"finassist/market"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS watchlist (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts_code TEXT NOT NULL UNIQUE,
        name TEXT,
        note TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS analysis_history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts_code TEXT NOT NULL,
        period TEXT NOT NULL,
        trend TEXT,
        close REAL,
        pct_chg REAL,
        payload TEXT,
        analyzed_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_analysis_ts_code ON analysis_history(ts_code, analyzed_at);
    `

	_, err = database.Exec(query)
	return err
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// WatchItem 自选股条目
type WatchItem struct {
	TsCode    string    `json:"ts_code"`
	Name      string    `json:"name"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// AddWatch 添加自选股，重复添加更新名称与备注
func AddWatch(tsCode, name, note string) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if tsCode == "" {
		return errors.New("ts_code required")
	}
	_, err := database.Exec(`
        INSERT INTO watchlist (ts_code, name, note) VALUES (?, ?, ?)
        ON CONFLICT(ts_code) DO UPDATE SET name = excluded.name, note = excluded.note`,
		tsCode, name, note)
	return err
}

// RemoveWatch 删除自选股，不存在时返回sql.ErrNoRows
func RemoveWatch(tsCode string) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	result, err := database.Exec(`DELETE FROM watchlist WHERE ts_code = ?`, tsCode)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListWatches 按添加时间倒序返回自选股
func ListWatches() ([]WatchItem, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT ts_code, name, note, created_at
        FROM watchlist
        ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]WatchItem, 0)
	for rows.Next() {
		var item WatchItem
		if err := rows.Scan(&item.TsCode, &item.Name, &item.Note, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AnalysisRecord 历史分析记录
type AnalysisRecord struct {
	ID         int64            `json:"id"`
	TsCode     string           `json:"ts_code"`
	Period     string           `json:"period"`
	Trend      string           `json:"trend"`
	Close      float64          `json:"close"`
	PctChg     float64          `json:"pct_chg"`
	Analysis   *market.Analysis `json:"analysis,omitempty"`
	AnalyzedAt time.Time        `json:"analyzed_at"`
}

// SaveAnalysis 保存一次分析结果，完整结果以JSON落库
func SaveAnalysis(a *market.Analysis) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = database.Exec(`
        INSERT INTO analysis_history (ts_code, period, trend, close, pct_chg, payload)
        VALUES (?, ?, ?, ?, ?, ?)`,
		a.TsCode, a.Period, a.Trend, a.Close, a.PctChg, string(payload))
	return err
}

// RecentAnalyses 查询分析历史，tsCode为空时返回全部股票的记录
func RecentAnalyses(tsCode string, limit int) ([]AnalysisRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
        SELECT id, ts_code, period, trend, close, pct_chg, payload, analyzed_at
        FROM analysis_history`
	args := []interface{}{}
	if tsCode != "" {
		query += ` WHERE ts_code = ?`
		args = append(args, tsCode)
	}
	query += ` ORDER BY analyzed_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := database.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AnalysisRecord, 0)
	for rows.Next() {
		var rec AnalysisRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.TsCode, &rec.Period, &rec.Trend,
			&rec.Close, &rec.PctChg, &payload, &rec.AnalyzedAt); err != nil {
			return nil, err
		}
		if payload != "" {
			var a market.Analysis
			if err := json.Unmarshal([]byte(payload), &a); err == nil {
				rec.Analysis = &a
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
