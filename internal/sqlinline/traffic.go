package sqlinline

const QInsertTrafficIgnore = `--sql 70c4ede1-2ce4-4831-b3f7-1137e0fb640b
INSERT OR IGNORE INTO traffic (mac, app_name, cat_name, timestamp, tx, rx)
VALUES (?, ?, ?, ?, ?, ?)
`

const QSelectSourceEventsSince = `--sql b67f1b4c-5c12-474d-8718-e4aa638ff999
SELECT mac, app_name, COALESCE(cat_name, ''), timestamp, COALESCE(tx, 0), COALESCE(rx, 0)
FROM traffic
WHERE timestamp >= ?
ORDER BY timestamp
`

const QSelectDayTotals = `--sql 47b9ced1-65fe-4fdd-a37a-5aa951dfe373
SELECT COALESCE(SUM(rx), 0), COALESCE(SUM(tx), 0), COALESCE(SUM(rx + tx), 0)
FROM traffic
WHERE timestamp >= ? AND timestamp < ?
`

const QSelectDeviceTotals = `--sql 3951525c-1a7c-4115-8c5d-15a0428680de
SELECT mac, COALESCE(SUM(rx), 0), COALESCE(SUM(tx), 0), COALESCE(SUM(rx + tx), 0)
FROM traffic
WHERE timestamp >= ? AND timestamp < ?
GROUP BY mac
ORDER BY mac
`

const QSelectDeviceAppTotals = `--sql db755662-6f73-4110-93a5-8ba88ea74e07
SELECT mac, app_name, COALESCE(SUM(rx + tx), 0)
FROM traffic
WHERE timestamp >= ? AND timestamp < ?
GROUP BY mac, app_name
ORDER BY mac, app_name
`

const QSelectTopApps = `--sql 280c289b-1416-4188-8044-868813730576
SELECT app_name, COALESCE(SUM(rx + tx), 0) AS total
FROM traffic
WHERE timestamp >= ? AND timestamp < ?
GROUP BY app_name
ORDER BY total DESC, app_name ASC
LIMIT ?
`

const QSelectHourlyTotals = `--sql 69ad7332-0bbf-4d81-a697-2f2098f7f09f
SELECT (timestamp - ?) / 3600 AS hour, COALESCE(SUM(rx + tx), 0)
FROM traffic
WHERE timestamp >= ? AND timestamp < ?
GROUP BY hour
ORDER BY hour
`

const QSelectEarliestTimestamp = `--sql ec54f9cc-c57c-4e44-a629-7a922a7b09f7
SELECT MIN(timestamp) FROM traffic
`
