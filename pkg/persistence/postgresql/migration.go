package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: initialSchema(),
		2: approvalQueueIndex(),
	}
}

func initialSchema() string {
	return `
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			os_type TEXT NOT NULL,
			status TEXT NOT NULL,
			client_ref TEXT NOT NULL DEFAULT '',
			parent_order_id TEXT,
			version BIGINT NOT NULL,
			document JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
		CREATE INDEX IF NOT EXISTS idx_orders_os_type ON orders (os_type);
		CREATE INDEX IF NOT EXISTS idx_orders_client_ref ON orders (client_ref);
		CREATE INDEX IF NOT EXISTS idx_orders_parent_order_id ON orders (parent_order_id);

		CREATE TABLE IF NOT EXISTS approval_items (
			id TEXT PRIMARY KEY,
			owner_order_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			version BIGINT NOT NULL,
			document JSONB NOT NULL,
			submitted_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_approval_items_owner ON approval_items (owner_order_id);
	`
}

func approvalQueueIndex() string {
	return `
		CREATE INDEX IF NOT EXISTS idx_approval_items_queue ON approval_items (status, kind, submitted_at);
	`
}
