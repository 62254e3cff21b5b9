package crawler

import "github.com/redis/go-redis/v9"

// Every state transition runs as one script so a job id is always in
// exactly one of the state containers.

// KEYS: waiting, completed. ARGV: job key prefix, max attempts, now ms,
// then (id, kind, url) triples.
var enqueueScript = redis.NewScript(`
local prefix, max, now = ARGV[1], ARGV[2], ARGV[3]
local queued = 0
for i = 4, #ARGV, 3 do
  local id, kind, url = ARGV[i], ARGV[i + 1], ARGV[i + 2]
  local key = prefix .. id
  local state = redis.call('HGET', key, 'state')
  if not state or state == 'completed' then
    if state then
      redis.call('ZREM', KEYS[2], id)
      redis.call('DEL', key)
    end
    redis.call('HSET', key, 'id', id, 'kind', kind, 'url', url, 'state', 'waiting',
      'attempts', 0, 'max_attempts', max, 'enqueued_at', now)
    redis.call('LPUSH', KEYS[1], id)
    queued = queued + 1
  end
end
return queued
`)

// KEYS: waiting, active. ARGV: job key prefix, now ms.
var dequeueScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then return false end
redis.call('LPUSH', KEYS[2], id)
local key = ARGV[1] .. id
redis.call('HSET', key, 'state', 'active', 'started_at', ARGV[2])
redis.call('HINCRBY', key, 'attempts', 1)
return id
`)

// KEYS: active, completed. ARGV: job key prefix, id, now ms.
var completeScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[2]) == 0 then return 0 end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[2])
redis.call('HSET', ARGV[1] .. ARGV[2], 'state', 'completed', 'finished_at', ARGV[3], 'last_error', '')
return 1
`)

// KEYS: active, delayed, failed. ARGV: job key prefix, id, now ms, error,
// backoff base ms. Attempt n waits base * 2^(n-1) before the next one.
var failScript = redis.NewScript(`
local key = ARGV[1] .. ARGV[2]
if redis.call('LREM', KEYS[1], 1, ARGV[2]) == 0 then return false end
local attempts = tonumber(redis.call('HGET', key, 'attempts') or '0')
local max = tonumber(redis.call('HGET', key, 'max_attempts') or '1')
local now = tonumber(ARGV[3])
if attempts < max then
  local delay = tonumber(ARGV[5]) * (2 ^ (attempts - 1))
  redis.call('ZADD', KEYS[2], now + delay, ARGV[2])
  redis.call('HSET', key, 'state', 'delayed', 'last_error', ARGV[4])
  return 'delayed'
end
redis.call('ZADD', KEYS[3], now, ARGV[2])
redis.call('HSET', key, 'state', 'failed', 'last_error', ARGV[4], 'finished_at', ARGV[3])
return 'failed'
`)

// KEYS: delayed, waiting. ARGV: job key prefix, now ms, limit.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2], 'LIMIT', 0, tonumber(ARGV[3]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
  redis.call('HSET', ARGV[1] .. id, 'state', 'waiting')
end
return #ids
`)

// KEYS: failed, waiting. ARGV: job key prefix, id.
var retryScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[2]) == 0 then return 0 end
redis.call('HSET', ARGV[1] .. ARGV[2], 'state', 'waiting', 'attempts', 0, 'last_error', '', 'finished_at', 0)
redis.call('LPUSH', KEYS[2], ARGV[2])
return 1
`)

// KEYS: waiting, delayed, failed, completed. ARGV: job key prefix, id.
// Returns -1 for an active job.
var removeScript = redis.NewScript(`
local key = ARGV[1] .. ARGV[2]
local state = redis.call('HGET', key, 'state')
if not state then return 0 end
if state == 'active' then return -1 end
redis.call('LREM', KEYS[1], 0, ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[2])
redis.call('ZREM', KEYS[3], ARGV[2])
redis.call('ZREM', KEYS[4], ARGV[2])
redis.call('DEL', key)
return 1
`)

// KEYS: active, waiting, failed. ARGV: job key prefix, cutoff ms, now ms.
// Jobs started at or before the cutoff go back to the head of waiting, or to
// the dead set once their attempt budget is spent.
var stalledScript = redis.NewScript(`
local n = 0
for _, id in ipairs(redis.call('LRANGE', KEYS[1], 0, -1)) do
  local key = ARGV[1] .. id
  local started = tonumber(redis.call('HGET', key, 'started_at') or '0')
  if started <= tonumber(ARGV[2]) then
    redis.call('LREM', KEYS[1], 0, id)
    local attempts = tonumber(redis.call('HGET', key, 'attempts') or '0')
    local max = tonumber(redis.call('HGET', key, 'max_attempts') or '1')
    if attempts >= max then
      redis.call('ZADD', KEYS[3], ARGV[3], id)
      redis.call('HSET', key, 'state', 'failed', 'last_error', 'job stalled', 'finished_at', ARGV[3])
    else
      redis.call('RPUSH', KEYS[2], id)
      redis.call('HSET', key, 'state', 'waiting', 'last_error', 'job stalled')
    end
    n = n + 1
  end
end
return n
`)

// KEYS: a finished set. ARGV: job key prefix, entries to keep.
var trimScript = redis.NewScript(`
local n = redis.call('ZCARD', KEYS[1]) - tonumber(ARGV[2])
if n <= 0 then return 0 end
local ids = redis.call('ZRANGE', KEYS[1], 0, n - 1)
for _, id in ipairs(ids) do
  redis.call('DEL', ARGV[1] .. id)
end
redis.call('ZREMRANGEBYRANK', KEYS[1], 0, n - 1)
return n
`)
