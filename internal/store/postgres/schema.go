package postgres

// One schemaless table holds every collection. created_at is the store's
// receipt clock; ordering queries read timestamps out of the jsonb body
// where ServerTimestamp sentinels were resolved.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS documents_collection_created_idx
    ON documents (collection, created_at);

CREATE OR REPLACE FUNCTION chousei_notify_document() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('chousei_documents', COALESCE(NEW.collection, OLD.collection));
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS documents_notify ON documents;
CREATE TRIGGER documents_notify
    AFTER INSERT OR UPDATE OR DELETE ON documents
    FOR EACH ROW EXECUTE FUNCTION chousei_notify_document();
`
