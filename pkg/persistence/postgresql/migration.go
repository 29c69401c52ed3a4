package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner VARCHAR(255),
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '[]',
				settings JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				session_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				input JSONB,
				output JSONB,
				error TEXT,
				input_tokens BIGINT NOT NULL DEFAULT 0,
				output_tokens BIGINT NOT NULL DEFAULT 0,
				cost BIGINT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);

			CREATE TABLE node_logs (
				seq BIGSERIAL PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				data JSONB,
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_node_logs_execution_id ON node_logs(execution_id);

			CREATE TABLE billing_transactions (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255),
				model VARCHAR(255) NOT NULL,
				pre_charge BIGINT NOT NULL,
				actual_charge BIGINT NOT NULL DEFAULT 0,
				adjustment BIGINT NOT NULL DEFAULT 0,
				estimated_tokens BIGINT NOT NULL DEFAULT 0,
				estimated_input_tokens BIGINT NOT NULL DEFAULT 0,
				input_tokens BIGINT NOT NULL DEFAULT 0,
				output_tokens BIGINT NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'completed', 'adjusted', 'refunded')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finalized_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_billing_transactions_account_id ON billing_transactions(account_id);
			CREATE INDEX idx_billing_transactions_execution_id ON billing_transactions(execution_id);
		`,
	}
}
