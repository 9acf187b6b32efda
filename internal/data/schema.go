package data

import (
	"fmt"

	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"

	"github.com/spf13/viper"
)

// module :
// Identifier used by this package when producing logs.
const module = "data"

// tablesDDL :
// Relational layout of the persisted state. Satellite rows
// (buildings, fleets, research, queues, missions) reference
// their planet or user and are rebuilt wholesale by the
// upsert functions.
var tablesDDL = []string{
	`create table if not exists users (
		id serial primary key,
		username text not null unique,
		email text not null unique,
		password_hash text not null,
		created_at timestamp with time zone not null default now(),
		last_login timestamp with time zone,
		is_active boolean not null default true
	)`,
	`create table if not exists planets (
		id integer primary key,
		name text not null,
		owner_id integer not null references users (id) on delete cascade,
		player_name text not null default '',
		galaxy integer not null,
		system integer not null,
		position integer not null,
		temperature integer not null default 25,
		size integer not null default 163,
		metal double precision not null default 0,
		crystal double precision not null default 0,
		deuterium double precision not null default 0,
		metal_rate double precision not null default 0,
		crystal_rate double precision not null default 0,
		deuterium_rate double precision not null default 0,
		last_update timestamp with time zone not null default now(),
		updated_at timestamp with time zone not null default now(),
		unique (owner_id, galaxy, system, position)
	)`,
	`create table if not exists buildings (
		id serial primary key,
		planet_id integer not null references planets (id) on delete cascade,
		type text not null,
		level integer not null default 0,
		unique (planet_id, type)
	)`,
	`create table if not exists fleets (
		id serial primary key,
		planet_id integer not null unique references planets (id) on delete cascade,
		light_fighter integer not null default 0,
		heavy_fighter integer not null default 0,
		cruiser integer not null default 0,
		battleship integer not null default 0,
		bomber integer not null default 0,
		colony_ship integer not null default 0
	)`,
	`create table if not exists research (
		id serial primary key,
		user_id integer not null unique references users (id) on delete cascade,
		energy integer not null default 0,
		laser integer not null default 0,
		ion integer not null default 0,
		hyperspace integer not null default 0,
		plasma integer not null default 0,
		computer integer not null default 0
	)`,
	`create table if not exists building_queue (
		id serial primary key,
		planet_id integer not null references planets (id) on delete cascade,
		building_type text not null,
		enqueued_at timestamp with time zone not null,
		complete_at timestamp with time zone not null,
		duration_s double precision not null default 0,
		cost_metal double precision not null default 0,
		cost_crystal double precision not null default 0,
		cost_deuterium double precision not null default 0,
		status text not null default 'pending'
	)`,
	`create table if not exists research_queue (
		id serial primary key,
		planet_id integer not null references planets (id) on delete cascade,
		research_type text not null,
		enqueued_at timestamp with time zone not null,
		complete_at timestamp with time zone not null,
		duration_s double precision not null default 0,
		cost_metal double precision not null default 0,
		cost_crystal double precision not null default 0,
		cost_deuterium double precision not null default 0,
		status text not null default 'pending'
	)`,
	`create table if not exists ship_build_queue (
		id serial primary key,
		planet_id integer not null references planets (id) on delete cascade,
		ship_type text not null,
		count integer not null default 1,
		enqueued_at timestamp with time zone not null,
		completion_time timestamp with time zone not null,
		cost_metal double precision not null default 0,
		cost_crystal double precision not null default 0,
		cost_deuterium double precision not null default 0
	)`,
	`create table if not exists fleet_missions (
		id serial primary key,
		planet_id integer not null unique references planets (id) on delete cascade,
		user_id integer not null,
		origin_galaxy integer not null,
		origin_system integer not null,
		origin_position integer not null,
		target_galaxy integer not null,
		target_system integer not null,
		target_position integer not null,
		mission text not null,
		speed double precision not null default 0,
		recalled boolean not null default false,
		departure_time timestamp with time zone not null,
		arrival_time timestamp with time zone not null,
		colonizing_until timestamp with time zone
	)`,
	`create table if not exists notifications (
		id integer primary key,
		user_id integer not null,
		type text not null,
		payload jsonb not null default '{}',
		priority text not null default 'normal',
		created_at timestamp with time zone not null default now(),
		read_at timestamp with time zone
	)`,
	`create table if not exists battle_reports (
		id integer primary key,
		attacker_user_id integer not null,
		defender_user_id integer,
		location jsonb not null default '{}',
		outcome jsonb not null default '{}',
		created_at timestamp with time zone not null default now()
	)`,
	`create table if not exists espionage_reports (
		id integer primary key,
		attacker_user_id integer not null,
		defender_user_id integer,
		location jsonb not null default '{}',
		snapshot jsonb not null default '{}',
		created_at timestamp with time zone not null default now()
	)`,
	`create table if not exists trade_offers (
		id integer primary key,
		seller_user_id integer not null,
		offered_resource text not null,
		offered_amount integer not null,
		requested_resource text not null,
		requested_amount integer not null,
		status text not null default 'open',
		accepted_by integer,
		accepted_at timestamp with time zone,
		created_at timestamp with time zone not null default now()
	)`,
	`create table if not exists trade_events (
		id integer primary key,
		type text not null,
		offer_id integer not null,
		seller_user_id integer not null,
		buyer_user_id integer,
		offered_resource text not null default '',
		offered_amount integer not null default 0,
		requested_resource text not null default '',
		requested_amount integer not null default 0,
		status text not null default '',
		created_at timestamp with time zone not null default now()
	)`,
}

// functionsDDL :
// Server side functions used by the proxies to perform the
// writes. Each one takes the payload as a single `jsonb`
// argument and rebuilds the satellite rows of the affected
// planet or user.
var functionsDDL = []string{
	`create or replace function upsert_planet(data jsonb) returns void as $$
	declare
		pid integer := (data->>'id')::integer;
		uid integer := (data->>'user_id')::integer;
		entry record;
	begin
		insert into planets (id, name, owner_id, player_name, galaxy, system, position, temperature, size,
			metal, crystal, deuterium, metal_rate, crystal_rate, deuterium_rate, last_update, updated_at)
		values (pid, data->>'name', uid, coalesce(data->>'player_name', ''),
			(data->>'galaxy')::integer, (data->>'system')::integer, (data->>'position')::integer,
			(data->>'temperature')::integer, (data->>'size')::integer,
			(data->>'metal')::double precision, (data->>'crystal')::double precision, (data->>'deuterium')::double precision,
			(data->>'metal_rate')::double precision, (data->>'crystal_rate')::double precision, (data->>'deuterium_rate')::double precision,
			(data->>'last_update')::timestamptz, (data->>'updated_at')::timestamptz)
		on conflict (id) do update set
			name = excluded.name,
			player_name = excluded.player_name,
			galaxy = excluded.galaxy,
			system = excluded.system,
			position = excluded.position,
			temperature = excluded.temperature,
			size = excluded.size,
			metal = excluded.metal,
			crystal = excluded.crystal,
			deuterium = excluded.deuterium,
			metal_rate = excluded.metal_rate,
			crystal_rate = excluded.crystal_rate,
			deuterium_rate = excluded.deuterium_rate,
			last_update = excluded.last_update,
			updated_at = excluded.updated_at;

		delete from buildings where planet_id = pid;
		for entry in select key, value from jsonb_each_text(coalesce(data->'buildings', '{}'::jsonb)) loop
			insert into buildings (planet_id, type, level) values (pid, entry.key, entry.value::integer);
		end loop;

		insert into fleets (planet_id, light_fighter, heavy_fighter, cruiser, battleship, bomber, colony_ship)
		values (pid,
			coalesce((data->'fleet'->>'light_fighter')::integer, 0),
			coalesce((data->'fleet'->>'heavy_fighter')::integer, 0),
			coalesce((data->'fleet'->>'cruiser')::integer, 0),
			coalesce((data->'fleet'->>'battleship')::integer, 0),
			coalesce((data->'fleet'->>'bomber')::integer, 0),
			coalesce((data->'fleet'->>'colony_ship')::integer, 0))
		on conflict (planet_id) do update set
			light_fighter = excluded.light_fighter,
			heavy_fighter = excluded.heavy_fighter,
			cruiser = excluded.cruiser,
			battleship = excluded.battleship,
			bomber = excluded.bomber,
			colony_ship = excluded.colony_ship;

		insert into research (user_id, energy, laser, ion, hyperspace, plasma, computer)
		values (uid,
			coalesce((data->'research'->>'energy')::integer, 0),
			coalesce((data->'research'->>'laser')::integer, 0),
			coalesce((data->'research'->>'ion')::integer, 0),
			coalesce((data->'research'->>'hyperspace')::integer, 0),
			coalesce((data->'research'->>'plasma')::integer, 0),
			coalesce((data->'research'->>'computer')::integer, 0))
		on conflict (user_id) do update set
			energy = excluded.energy,
			laser = excluded.laser,
			ion = excluded.ion,
			hyperspace = excluded.hyperspace,
			plasma = excluded.plasma,
			computer = excluded.computer;

		delete from building_queue where planet_id = pid;
		for entry in select value from jsonb_array_elements(coalesce(data->'build_queue', '[]'::jsonb)) loop
			insert into building_queue (planet_id, building_type, enqueued_at, complete_at, duration_s,
				cost_metal, cost_crystal, cost_deuterium)
			values (pid, entry.value->>'type', (entry.value->>'queued_at')::timestamptz,
				(entry.value->>'completion_time')::timestamptz, (entry.value->>'duration_s')::double precision,
				(entry.value->>'cost_metal')::double precision, (entry.value->>'cost_crystal')::double precision,
				(entry.value->>'cost_deuterium')::double precision);
		end loop;

		delete from research_queue where planet_id = pid;
		for entry in select value from jsonb_array_elements(coalesce(data->'research_queue', '[]'::jsonb)) loop
			insert into research_queue (planet_id, research_type, enqueued_at, complete_at, duration_s,
				cost_metal, cost_crystal, cost_deuterium)
			values (pid, entry.value->>'type', (entry.value->>'queued_at')::timestamptz,
				(entry.value->>'completion_time')::timestamptz, (entry.value->>'duration_s')::double precision,
				(entry.value->>'cost_metal')::double precision, (entry.value->>'cost_crystal')::double precision,
				(entry.value->>'cost_deuterium')::double precision);
		end loop;

		delete from ship_build_queue where planet_id = pid;
		for entry in select value from jsonb_array_elements(coalesce(data->'ship_queue', '[]'::jsonb)) loop
			insert into ship_build_queue (planet_id, ship_type, count, enqueued_at, completion_time,
				cost_metal, cost_crystal, cost_deuterium)
			values (pid, entry.value->>'type', (entry.value->>'count')::integer,
				(entry.value->>'queued_at')::timestamptz, (entry.value->>'completion_time')::timestamptz,
				(entry.value->>'cost_metal')::double precision, (entry.value->>'cost_crystal')::double precision,
				(entry.value->>'cost_deuterium')::double precision);
		end loop;

		if data ? 'mission' and data->'mission' is not null and jsonb_typeof(data->'mission') = 'object' then
			insert into fleet_missions (planet_id, user_id,
				origin_galaxy, origin_system, origin_position,
				target_galaxy, target_system, target_position,
				mission, speed, recalled, departure_time, arrival_time, colonizing_until)
			values (pid, uid,
				(data->'mission'->>'origin_galaxy')::integer, (data->'mission'->>'origin_system')::integer, (data->'mission'->>'origin_position')::integer,
				(data->'mission'->>'target_galaxy')::integer, (data->'mission'->>'target_system')::integer, (data->'mission'->>'target_position')::integer,
				data->'mission'->>'mission', (data->'mission'->>'speed')::double precision,
				(data->'mission'->>'recalled')::boolean,
				(data->'mission'->>'departure_time')::timestamptz, (data->'mission'->>'arrival_time')::timestamptz,
				(data->'mission'->>'colonizing_until')::timestamptz)
			on conflict (planet_id) do update set
				user_id = excluded.user_id,
				origin_galaxy = excluded.origin_galaxy,
				origin_system = excluded.origin_system,
				origin_position = excluded.origin_position,
				target_galaxy = excluded.target_galaxy,
				target_system = excluded.target_system,
				target_position = excluded.target_position,
				mission = excluded.mission,
				speed = excluded.speed,
				recalled = excluded.recalled,
				departure_time = excluded.departure_time,
				arrival_time = excluded.arrival_time,
				colonizing_until = excluded.colonizing_until;
		else
			delete from fleet_missions where planet_id = pid;
		end if;
	end;
	$$ language plpgsql`,
	`create or replace function delete_planet(pid integer) returns void as $$
	begin
		delete from planets where id = pid;
	end;
	$$ language plpgsql`,
	`create or replace function delete_fleet_mission(pid integer) returns void as $$
	begin
		delete from fleet_missions where planet_id = pid;
	end;
	$$ language plpgsql`,
	`create or replace function save_trade_offer(data jsonb) returns void as $$
	begin
		insert into trade_offers (id, seller_user_id, offered_resource, offered_amount,
			requested_resource, requested_amount, status, accepted_by, accepted_at, created_at)
		values ((data->>'id')::integer, (data->>'seller_user_id')::integer,
			data->>'offered_resource', (data->>'offered_amount')::integer,
			data->>'requested_resource', (data->>'requested_amount')::integer,
			data->>'status', (data->>'accepted_by')::integer,
			(data->>'accepted_at')::timestamptz, (data->>'created_at')::timestamptz)
		on conflict (id) do update set
			status = excluded.status,
			accepted_by = excluded.accepted_by,
			accepted_at = excluded.accepted_at;
	end;
	$$ language plpgsql`,
	`create or replace function save_trade_event(data jsonb) returns void as $$
	begin
		insert into trade_events (id, type, offer_id, seller_user_id, buyer_user_id,
			offered_resource, offered_amount, requested_resource, requested_amount, status, created_at)
		values ((data->>'id')::integer, data->>'type', (data->>'offer_id')::integer,
			(data->>'seller_user_id')::integer, (data->>'buyer_user_id')::integer,
			coalesce(data->>'offered_resource', ''), coalesce((data->>'offered_amount')::integer, 0),
			coalesce(data->>'requested_resource', ''), coalesce((data->>'requested_amount')::integer, 0),
			coalesce(data->>'status', ''), (data->>'created_at')::timestamptz)
		on conflict (id) do nothing;
	end;
	$$ language plpgsql`,
	`create or replace function save_notification(data jsonb) returns void as $$
	begin
		insert into notifications (id, user_id, type, payload, priority, created_at, read_at)
		values ((data->>'id')::integer, (data->>'user_id')::integer, data->>'type',
			coalesce(data->'payload', '{}'::jsonb), data->>'priority',
			(data->>'created_at')::timestamptz, (data->>'read_at')::timestamptz)
		on conflict (id) do update set
			read_at = excluded.read_at;
	end;
	$$ language plpgsql`,
	`create or replace function delete_notification(nid integer) returns void as $$
	begin
		delete from notifications where id = nid;
	end;
	$$ language plpgsql`,
	`create or replace function save_battle_report(data jsonb) returns void as $$
	begin
		insert into battle_reports (id, attacker_user_id, defender_user_id, location, outcome, created_at)
		values ((data->>'id')::integer, (data->>'attacker_user_id')::integer,
			(data->>'defender_user_id')::integer, coalesce(data->'location', '{}'::jsonb),
			coalesce(data->'outcome', '{}'::jsonb), (data->>'created_at')::timestamptz)
		on conflict (id) do nothing;
	end;
	$$ language plpgsql`,
	`create or replace function save_espionage_report(data jsonb) returns void as $$
	begin
		insert into espionage_reports (id, attacker_user_id, defender_user_id, location, snapshot, created_at)
		values ((data->>'id')::integer, (data->>'attacker_user_id')::integer,
			(data->>'defender_user_id')::integer, coalesce(data->'location', '{}'::jsonb),
			coalesce(data->'snapshot', '{}'::jsonb), (data->>'created_at')::timestamptz)
		on conflict (id) do nothing;
	end;
	$$ language plpgsql`,
}

// ApplySchema :
// Creates the tables and the server side functions when the
// `Database.CreateSchema` option is set. Meant for the dev
// setups where no migration tool manages the database.
//
// Returns any error.
func ApplySchema(dbase *db.DB, log logger.Logger) error {
	if !viper.IsSet("Database.CreateSchema") || !viper.GetBool("Database.CreateSchema") {
		return nil
	}
	if !dbase.Enabled() {
		return nil
	}

	statements := make([]string, 0, len(tablesDDL)+len(functionsDDL))
	statements = append(statements, tablesDDL...)
	statements = append(statements, functionsDDL...)

	for _, stmt := range statements {
		if _, err := dbase.DBExecute(stmt); err != nil {
			return fmt.Errorf("unable to apply schema: %v", err)
		}
	}

	log.Trace(logger.Info, module, "Applied database schema")

	return nil
}
