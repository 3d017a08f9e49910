package db

// SchemaSQL defines the sync run ledger.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS sync_run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS collection ON sync_run TYPE string;
    DEFINE FIELD IF NOT EXISTS job ON sync_run TYPE string;
    DEFINE FIELD IF NOT EXISTS job_kind ON sync_run TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON sync_run TYPE string
        ASSERT $value IN ["pending", "running", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS groups ON sync_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS inserted ON sync_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS updated ON sync_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS deleted ON sync_run TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS error ON sync_run TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON sync_run TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON sync_run TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS sync_run_collection ON sync_run FIELDS collection;
    DEFINE INDEX IF NOT EXISTS sync_run_started ON sync_run FIELDS started_at;
`
