package postgresql

// migrations returns the ordered schema migrations for the PostgreSQL store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				space_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_by TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_space ON workflows (space_id, created_at);

			CREATE TABLE IF NOT EXISTS workflow_statuses (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				key TEXT NOT NULL,
				name TEXT NOT NULL,
				color TEXT,
				sort_order INTEGER NOT NULL DEFAULT 0,
				is_initial BOOLEAN NOT NULL DEFAULT FALSE,
				is_done BOOLEAN NOT NULL DEFAULT FALSE,
				UNIQUE (workflow_id, key)
			);

			CREATE TABLE IF NOT EXISTS workflow_transitions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				from_status_id UUID REFERENCES workflow_statuses(id),
				to_status_id UUID NOT NULL REFERENCES workflow_statuses(id),
				key TEXT NOT NULL,
				universal BOOLEAN NOT NULL DEFAULT FALSE,
				guards JSONB,
				permission TEXT,
				UNIQUE (workflow_id, from_status_id, key)
			);

			CREATE TABLE IF NOT EXISTS task_templates (
				id UUID PRIMARY KEY,
				space_id TEXT NOT NULL,
				name TEXT NOT NULL,
				workflow_id UUID REFERENCES workflows(id),
				defaults JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE IF NOT EXISTS tasks (
				id UUID PRIMARY KEY,
				space_id TEXT NOT NULL,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				status_id UUID NOT NULL REFERENCES workflow_statuses(id),
				version BIGINT NOT NULL DEFAULT 0,
				title TEXT NOT NULL,
				assignee TEXT,
				due_date TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				fields JSONB,
				template_id UUID,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_tasks_space ON tasks (space_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_tasks_workflow ON tasks (workflow_id);

			CREATE TABLE IF NOT EXISTS task_audit (
				id UUID PRIMARY KEY,
				task_id UUID NOT NULL REFERENCES tasks(id),
				user_id TEXT NOT NULL,
				from_status_id UUID NOT NULL,
				to_status_id UUID NOT NULL,
				transition_id UUID NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_task_audit_task ON task_audit (task_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_task_audit_created ON task_audit (created_at);
		`,
	}
}
