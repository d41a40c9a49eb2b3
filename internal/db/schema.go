package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- VOICE_JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS voice_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS audio_url ON voice_job TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON voice_job TYPE string;
    DEFINE FIELD IF NOT EXISTS calendar_id ON voice_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS labels ON voice_job TYPE option<array<object>> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS status ON voice_job TYPE string
        ASSERT $value INSIDE ['pending', 'processing', 'completed', 'failed'];
    DEFINE FIELD IF NOT EXISTS transcript ON voice_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS result ON voice_job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error_message ON voice_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS failure_kind ON voice_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS event_id ON voice_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON voice_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON voice_job TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS voice_job_status ON voice_job FIELDS status;
    DEFINE INDEX IF NOT EXISTS voice_job_user ON voice_job FIELDS user_id;

    -- ==========================================================================
    -- EVENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS event SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON event TYPE string;
    DEFINE FIELD IF NOT EXISTS calendar_id ON event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS title ON event TYPE string;
    DEFINE FIELD IF NOT EXISTS start ON event TYPE datetime;
    DEFINE FIELD IF NOT EXISTS end ON event TYPE datetime;
    DEFINE FIELD IF NOT EXISTS location ON event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS description ON event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS all_day ON event TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS label_id ON event TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS participants ON event TYPE option<array<string>>;
    DEFINE FIELD IF NOT EXISTS provenance ON event TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON event TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON event TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS event_user ON event FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS event_start ON event FIELDS start;
`
