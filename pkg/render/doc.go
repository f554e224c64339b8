/*
Package render follows the event journal and formats events for humans.

The renderer is a pure consumer of the bridge's output: it polls the
current UTC day's journal file, decodes each JSON line, resolves dbrefs
through an identity map, and prints one formatted line per event through
language-keyed templates. It never writes to the journal and shares no
state with the bridge beyond the filesystem.

# Templates

Templates are a YAML file keyed by event kind and language:

	SAY:
	  en: "{ts} {actor} {verb}: {raw}  @ {location}"
	  pl: "{ts} {actor} {verb}: {raw}  @ {location}"
	MOVE:
	  en: "{ts} {actor} moves {from_loc} -> {to_loc}"

Missing languages fall back to English, then to built-in defaults.
Unknown event kinds are skipped silently; malformed journal lines are
logged and skipped.

# Resume Cursor

Follow positions are checkpointed per journal file in a small bbolt
database. The cursor only ever advances past complete lines, so a
renderer restart resumes exactly where it stopped: nothing re-rendered,
nothing skipped. Without a stored cursor, from_start selects the top of
the file versus only new lines.

# Day Rollover

When the UTC day changes, the follower closes the old file and waits for
the new day's file to appear, emitting its own heartbeat
(renderer.heartbeat.json) while it waits.
*/
package render
