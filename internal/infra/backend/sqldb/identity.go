package sqldb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/dbwatch/internal/core/domain"
)

type identityFunc func(ctx context.Context, db *sqlx.DB) (domain.Identity, error)

var identityQueries = map[string]identityFunc{
	"postgres": postgresIdentity,
	"oracle":   oracleIdentity,
}

const postgresIdentitySQL = `select substring(version() from '[0-9]+'),
       case when pg_is_in_recovery() then 'standby' else 'primary' end,
       current_database(), current_user, pg_backend_pid()`

func postgresIdentity(ctx context.Context, db *sqlx.DB) (domain.Identity, error) {
	id := domain.Identity{Version: "unk", Role: "primary", InstanceType: "rdbms"}

	var pid int64
	err := db.QueryRowxContext(ctx, postgresIdentitySQL).
		Scan(&id.Version, &id.Role, &id.InstanceName, &id.Username, &pid)
	if err != nil {
		return domain.Identity{Version: "unk", Role: "primary", InstanceType: "rdbms"}, err
	}
	id.SessionID = strconv.FormatInt(pid, 10)
	return id, nil
}

const oracleIdentitySQL = `select substr(i.version, 0, instr(i.version, '.') - 1),
       s.sid, s.serial#, p.value instance_type, i.instance_name, s.username
  from v$instance i, v$session s, v$parameter p
 where s.sid = (select sid from v$mystat where rownum = 1)
   and p.name = 'instance_type'`

func oracleIdentity(ctx context.Context, db *sqlx.DB) (domain.Identity, error) {
	id := domain.Identity{Version: "unk", InstanceType: "rdbms"}

	var (
		sid, serial int64
		user        sql.NullString
	)
	err := db.QueryRowxContext(ctx, oracleIdentitySQL).
		Scan(&id.Version, &sid, &serial, &id.InstanceType, &id.InstanceName, &user)
	if err != nil {
		// ORA-00904: invalid identifier, the pre-9i dictionary
		if strings.Contains(err.Error(), "ORA-00904") {
			id.Version = "pre9"
		}
		id.Role = "primary"
		return id, err
	}
	id.SessionID = strconv.FormatInt(sid, 10) + "," + strconv.FormatInt(serial, 10)
	id.Username = user.String

	if !strings.EqualFold(id.InstanceType, "rdbms") {
		id.Role = "asm"
		return id, nil
	}
	if err := db.QueryRowxContext(ctx, `select database_role from v$database`).Scan(&id.Role); err != nil {
		id.Role = "primary"
		return id, err
	}
	return id, nil
}
