package database

// Order queries. Expiry is a column: rows past expires_at are invisible to reads
// and removed by DeleteExpiredOrdersSQL.
const (
	UpsertOrderSQL = `
		INSERT INTO orders (id, customer_name, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET customer_name = EXCLUDED.customer_name,
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at`

	GetOrderSQL = `
		SELECT payload FROM orders
		WHERE id = $1 AND expires_at > NOW()`

	ListLiveOrdersSQL = `
		SELECT payload FROM orders
		WHERE expires_at > NOW()`

	DeleteExpiredOrdersSQL = `
		DELETE FROM orders WHERE expires_at <= NOW()`
)

// Customer queries
const (
	InsertCustomerSQL = `
		INSERT INTO customers (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING`

	ListCustomersSQL = `
		SELECT name FROM customers`
)
