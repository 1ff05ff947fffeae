package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- INSTRUCTION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS instruction SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS document_type ON instruction TYPE string;
    DEFINE FIELD IF NOT EXISTS schema_path ON instruction TYPE string;
    DEFINE FIELD IF NOT EXISTS field_type ON instruction TYPE string;
    DEFINE FIELD IF NOT EXISTS model_id ON instruction TYPE string;
    DEFINE FIELD IF NOT EXISTS template ON instruction TYPE string;
    DEFINE FIELD IF NOT EXISTS system ON instruction TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS model_settings ON instruction TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS disabled ON instruction TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS updated_at ON instruction TYPE datetime DEFAULT time::now();
    -- One record per schema path per document type.
    DEFINE INDEX IF NOT EXISTS instruction_path ON instruction FIELDS document_type, schema_path UNIQUE;

    -- ==========================================================================
    -- PROVIDER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS provider SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS kind ON provider TYPE string;
    DEFINE FIELD IF NOT EXISTS enabled ON provider TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS api_key_cipher ON provider TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS base_url ON provider TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS region ON provider TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS models ON provider TYPE array<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS default_options ON provider TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS updated_at ON provider TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- DEFAULTS TABLE (single record holding per-use-case model defaults)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS defaults SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS entries ON defaults TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS updated_at ON defaults TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- GENERATION JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS generation_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS instruction_id ON generation_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS task_id ON generation_job TYPE string;
    DEFINE FIELD IF NOT EXISTS provider_id ON generation_job TYPE string;
    DEFINE FIELD IF NOT EXISTS model_id ON generation_job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON generation_job TYPE string
        ASSERT $value IN ["queued", "running", "completed", "failed", "canceled"];
    DEFINE FIELD IF NOT EXISTS progress ON generation_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS result_ref ON generation_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS error ON generation_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON generation_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON generation_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON generation_job TYPE option<datetime>;
    DEFINE INDEX IF NOT EXISTS job_created ON generation_job FIELDS created_at;
`
