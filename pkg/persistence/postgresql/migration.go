package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create campaigns table
			CREATE TABLE campaigns (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				budget DOUBLE PRECISION NOT NULL DEFAULT 0,
				daily_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
				targeting JSONB DEFAULT '[]',
				ad_groups JSONB DEFAULT '[]',
				metrics JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_campaigns_status ON campaigns(status);
			CREATE INDEX idx_campaigns_created_at ON campaigns(created_at);

			-- Create runs table
			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL,
				graph_name VARCHAR(255) NOT NULL,
				entry_node VARCHAR(255) NOT NULL,
				current_node VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				context JSONB DEFAULT '{}',
				steps JSONB DEFAULT '[]',
				attempts JSONB DEFAULT '{}',
				last_error TEXT,
				cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_runs_campaign_id ON runs(campaign_id);
			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_created_at ON runs(created_at);

			-- At most one non-terminal run per campaign
			CREATE UNIQUE INDEX idx_runs_active_campaign ON runs(campaign_id)
				WHERE status IN ('pending', 'running', 'suspended');

			-- Create alerts table
			CREATE TABLE alerts (
				id VARCHAR(255) PRIMARY KEY,
				campaign_id VARCHAR(255) NOT NULL,
				category VARCHAR(50) NOT NULL,
				severity VARCHAR(50) NOT NULL,
				message TEXT NOT NULL,
				status VARCHAR(50) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_alerts_campaign_id ON alerts(campaign_id);
			CREATE INDEX idx_alerts_status ON alerts(status);
			CREATE INDEX idx_alerts_created_at ON alerts(created_at);

			-- Create reports table
			CREATE TABLE reports (
				campaign_id VARCHAR(255) NOT NULL,
				period VARCHAR(255) NOT NULL,
				format VARCHAR(50) NOT NULL,
				content_ref TEXT NOT NULL,
				version INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (campaign_id, period, version)
			);

			CREATE INDEX idx_reports_campaign_id ON reports(campaign_id);
		`,
	}
}
