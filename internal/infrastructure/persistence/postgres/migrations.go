// Package postgres implements the PostgreSQL persistence layer.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CAMPAIGNS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create campaigns table
-- Version: 001

CREATE TABLE IF NOT EXISTS campaigns (
    id VARCHAR(100) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    items JSONB NOT NULL DEFAULT '[]'::jsonb,
    end_date TIMESTAMP WITH TIME ZONE,
    total_items INTEGER NOT NULL DEFAULT 0,
    estimated_minutes INTEGER NOT NULL DEFAULT 0,
    total_xp INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_items CHECK (total_items >= 0),
    CONSTRAINT valid_total_xp CHECK (total_xp >= 0)
);

CREATE INDEX IF NOT EXISTS idx_campaigns_created_at ON campaigns(created_at);
`

const migration001Down = `
DROP TABLE IF EXISTS campaigns;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create enrollments table
-- Version: 002

CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    campaign_id VARCHAR(100) NOT NULL REFERENCES campaigns(id),
    status VARCHAR(20) NOT NULL DEFAULT 'not-started',
    module_progress JSONB NOT NULL DEFAULT '{}'::jsonb,
    completed_modules INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE,
    last_accessed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_enrollments_user_campaign UNIQUE (user_id, campaign_id),
    CONSTRAINT valid_status CHECK (status IN ('not-started', 'in-progress', 'completed')),
    CONSTRAINT valid_completed_modules CHECK (completed_modules >= 0)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_user_id ON enrollments(user_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_campaign_id ON enrollments(campaign_id);
CREATE INDEX IF NOT EXISTS idx_enrollments_completed ON enrollments(user_id) WHERE status = 'completed';
`

const migration002Down = `
DROP TABLE IF EXISTS enrollments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ACTIVITY DAYS AND BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create activity_days and user_badges tables
-- Version: 003

-- One row per learner per local calendar day with any completion activity.
-- Streaks and XP totals are derived from this table; rows are only ever
-- inserted or incremented.
CREATE TABLE IF NOT EXISTS activity_days (
    user_id UUID NOT NULL,
    day DATE NOT NULL,
    xp_gained INTEGER NOT NULL DEFAULT 0,
    modules_completed INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (user_id, day),
    CONSTRAINT valid_xp_gained CHECK (xp_gained >= 0),
    CONSTRAINT valid_modules_completed CHECK (modules_completed >= 0)
);

CREATE INDEX IF NOT EXISTS idx_activity_days_day ON activity_days(day);

-- Earned badges. The primary key makes double-award impossible at the
-- storage level regardless of how often evaluation reruns.
CREATE TABLE IF NOT EXISTS user_badges (
    user_id UUID NOT NULL,
    badge_id VARCHAR(50) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_earned_at ON user_badges(user_id, earned_at);
`

const migration003Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS activity_days;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE CELEBRATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create celebrations ledger
-- Version: 004

-- One row per celebration shown. The primary key is what makes the
-- show-once guarantee hold across instances and restarts.
CREATE TABLE IF NOT EXISTS celebrations (
    user_id UUID NOT NULL,
    celebration_key VARCHAR(120) NOT NULL,
    shown_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, celebration_key)
);
`

const migration004Down = `
DROP TABLE IF EXISTS celebrations;
`
