package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table (draft working copies)
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published')),
				owner VARCHAR(255),
				current_version INTEGER NOT NULL DEFAULT 0,
				definition JSONB,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			-- Create workflow_versions table (immutable published snapshots)
			CREATE TABLE workflow_versions (
				workflow_id VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL,
				definition JSONB NOT NULL,
				published_by VARCHAR(255) NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE NOT NULL,
				notes TEXT,
				PRIMARY KEY (workflow_id, version)
			);

			CREATE INDEX idx_workflow_versions_workflow_id ON workflow_versions(workflow_id);
			CREATE INDEX idx_workflow_versions_published_at ON workflow_versions(published_at);
		`,
		2: `
			-- Migration 2: approver lookup tables
			CREATE TABLE lookup_tables (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				key_column VARCHAR(255) NOT NULL,
				rows JSONB NOT NULL DEFAULT '[]',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
