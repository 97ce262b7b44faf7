package postgres

const schema = `
CREATE TABLE IF NOT EXISTS site (
	id          BIGSERIAL PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	status_time TIMESTAMPTZ NOT NULL,
	last_error  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS page (
	id      BIGSERIAL PRIMARY KEY,
	site_id BIGINT NOT NULL REFERENCES site(id) ON DELETE CASCADE,
	path    TEXT NOT NULL,
	code    INTEGER NOT NULL,
	content TEXT NOT NULL,
	UNIQUE (site_id, path)
);

CREATE TABLE IF NOT EXISTS lemma (
	id        BIGSERIAL PRIMARY KEY,
	site_id   BIGINT NOT NULL REFERENCES site(id) ON DELETE CASCADE,
	lemma     TEXT NOT NULL,
	frequency INTEGER NOT NULL,
	UNIQUE (site_id, lemma)
);

CREATE TABLE IF NOT EXISTS search_index (
	id       BIGSERIAL PRIMARY KEY,
	page_id  BIGINT NOT NULL REFERENCES page(id) ON DELETE CASCADE,
	lemma_id BIGINT NOT NULL REFERENCES lemma(id) ON DELETE CASCADE,
	rank     DOUBLE PRECISION NOT NULL,
	UNIQUE (page_id, lemma_id)
);

CREATE INDEX IF NOT EXISTS search_index_lemma_idx ON search_index (lemma_id);

CREATE TABLE IF NOT EXISTS field (
	id       BIGSERIAL PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	selector TEXT NOT NULL,
	weight   DOUBLE PRECISION NOT NULL
);
`
