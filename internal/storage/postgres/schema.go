package postgres

const schema = `
CREATE TABLE IF NOT EXISTS nfce_configs (
	id TEXT PRIMARY KEY,
	cnpj TEXT NOT NULL,
	legal_name TEXT NOT NULL,
	trade_name TEXT NOT NULL DEFAULT '',
	state_registration TEXT NOT NULL DEFAULT '',
	tax_regime INT NOT NULL DEFAULT 1,
	street TEXT NOT NULL DEFAULT '',
	number TEXT NOT NULL DEFAULT '',
	complement TEXT NOT NULL DEFAULT '',
	district TEXT NOT NULL DEFAULT '',
	city_code TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zip_code TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	environment INT NOT NULL DEFAULT 2,
	csc_id TEXT NOT NULL DEFAULT '',
	csc_token TEXT NOT NULL DEFAULT '',
	series TEXT NOT NULL DEFAULT '1',
	next_number BIGINT NOT NULL DEFAULT 1,
	default_tax_situation TEXT NOT NULL DEFAULT '',
	middleware_addr TEXT NOT NULL DEFAULT '',
	tech_cnpj TEXT NOT NULL DEFAULT '',
	tech_contact TEXT NOT NULL DEFAULT '',
	tech_email TEXT NOT NULL DEFAULT '',
	tech_phone TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	discount NUMERIC(12,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id TEXT NOT NULL REFERENCES orders(id),
	position INT NOT NULL,
	product_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	unit TEXT NOT NULL DEFAULT '',
	quantity NUMERIC(12,4) NOT NULL,
	unit_price NUMERIC(12,4) NOT NULL,
	ncm TEXT NOT NULL DEFAULT '',
	cfop TEXT NOT NULL DEFAULT '',
	tax_situation TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS order_payments (
	order_id TEXT NOT NULL REFERENCES orders(id),
	position INT NOT NULL,
	method TEXT NOT NULL,
	amount NUMERIC(12,2) NOT NULL,
	change_given NUMERIC(12,2) NOT NULL DEFAULT 0,
	PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS nfce_emissions (
	id UUID PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	config_id TEXT NOT NULL REFERENCES nfce_configs(id),
	number BIGINT NOT NULL,
	series TEXT NOT NULL,
	outcome TEXT NOT NULL,
	status TEXT NOT NULL,
	access_key TEXT NOT NULL DEFAULT '',
	protocol_id TEXT NOT NULL DEFAULT '',
	status_code TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	xml_path TEXT NOT NULL DEFAULT '',
	consumer_id TEXT NOT NULL DEFAULT '',
	raw_request TEXT NOT NULL DEFAULT '',
	raw_reply TEXT NOT NULL DEFAULT '',
	emitted_at TIMESTAMPTZ NOT NULL,
	UNIQUE (config_id, series, number)
);

CREATE INDEX IF NOT EXISTS nfce_emissions_order_idx ON nfce_emissions (order_id, emitted_at DESC);
`
