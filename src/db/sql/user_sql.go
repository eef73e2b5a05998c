package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"monii/src/models"
)

func CreateUser(ctx context.Context, pool *pgxpool.Pool, req models.RegisterRequest, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, username, password_hash, created_at
	`
	var u models.User
	err := pool.QueryRow(ctx, query, req.Email, req.Username, passwordHash).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByUsername(ctx context.Context, pool *pgxpool.Pool, username string) (*models.User, error) {
	query := `SELECT id, email, username, password_hash, created_at FROM users WHERE username = $1`
	var u models.User
	err := pool.QueryRow(ctx, query, username).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
