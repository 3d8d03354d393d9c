package history

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	xerrors "BundleHub-Chain/internal/errors"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore 使用 MySQL 持久化操作记录。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 连接 MySQL 并确保表结构存在。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS bundle_actions (
        id VARCHAR(64) PRIMARY KEY,
        bundle VARCHAR(64) NOT NULL,
        action VARCHAR(16) NOT NULL,
        strategy VARCHAR(32) NOT NULL DEFAULT '',
        input_token VARCHAR(64) DEFAULT '',
        input_amount VARCHAR(96) DEFAULT '',
        shares VARCHAR(96) DEFAULT '',
        min_shares VARCHAR(96) DEFAULT '',
        tx_hash VARCHAR(66) DEFAULT '',
        atomic TINYINT(1) NOT NULL DEFAULT 0,
        approvals INT NOT NULL DEFAULT 0,
        status VARCHAR(16) NOT NULL,
        error_code VARCHAR(64) DEFAULT '',
        error_message TEXT,
        created_at BIGINT NOT NULL,
        INDEX idx_action_bundle (bundle),
        INDEX idx_action_created (created_at)
)`
	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 bundle_actions 表失败")
	}
	return nil
}

// Append 插入一条操作记录。
func (s *MySQLStore) Append(ctx context.Context, record *Record) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "操作记录 ID 不能为空")
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}

	const stmt = `INSERT INTO bundle_actions
        (id, bundle, action, strategy, input_token, input_amount, shares, min_shares, tx_hash, atomic, approvals, status, error_code, error_message, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.Bundle,
		string(record.Action),
		record.Strategy,
		record.InputToken,
		record.InputAmount,
		record.Shares,
		record.MinShares,
		record.TxHash,
		record.Atomic,
		record.Approvals,
		string(record.Status),
		record.ErrorCode,
		record.ErrorMessage,
		record.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrRecordConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入操作记录失败")
	}
	return nil
}

// List 按时间倒序返回匹配的记录。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	opts.applyDefaults()

	query := `SELECT id, bundle, action, strategy, input_token, input_amount, shares, min_shares,
        tx_hash, atomic, approvals, status, error_code, error_message, created_at FROM bundle_actions`

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if opts.Bundle != "" {
		conditions = append(conditions, "bundle = ?")
		args = append(args, opts.Bundle)
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(opts.Action))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询操作记录失败")
	}
	defer rows.Close()

	records := make([]*Record, 0, opts.Limit)
	for rows.Next() {
		var record Record
		var action, status string
		if err := rows.Scan(
			&record.ID,
			&record.Bundle,
			&action,
			&record.Strategy,
			&record.InputToken,
			&record.InputAmount,
			&record.Shares,
			&record.MinShares,
			&record.TxHash,
			&record.Atomic,
			&record.Approvals,
			&status,
			&record.ErrorCode,
			&record.ErrorMessage,
			&record.CreatedAt,
		); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析操作记录失败")
		}
		record.Action = Action(action)
		record.Status = Status(status)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历操作记录失败")
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*MySQLStore)(nil)
