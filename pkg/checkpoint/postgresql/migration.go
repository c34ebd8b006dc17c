package postgresql

// migrations returns the ordered schema migrations for the checkpoint store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				state JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS checkpoints (
				execution_id TEXT NOT NULL,
				unit_name TEXT NOT NULL,
				payload JSONB NOT NULL,
				saved_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				PRIMARY KEY (execution_id, unit_name)
			);

			CREATE TABLE IF NOT EXISTS reports (
				execution_id TEXT PRIMARY KEY,
				report JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status);
			CREATE INDEX IF NOT EXISTS idx_checkpoints_execution ON checkpoints (execution_id);
		`,
	}
}
