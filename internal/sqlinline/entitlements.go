package sqlinline

const QSelectEntitlement = `--sql a686452e-5adc-442c-b18a-082ece12e094
select user_id, plan, credits_remaining, reset_at, version, created_at, updated_at
from entitlements
where user_id = $1::text;
`

const QSelectEntitlementForUpdate = `--sql 1e10b95b-f2be-4462-ac03-4454cd10ed97
select user_id, plan, credits_remaining, reset_at, version, created_at, updated_at
from entitlements
where user_id = $1::text
for update;
`

const QInsertEntitlement = `--sql 4a200a4d-ed86-4fb5-84f9-f6692dd588ca
insert into entitlements (user_id, plan, daily_limit, credits_remaining, reset_at, version, created_at, updated_at)
values ($1::text, $2::text, $3::int, $4::int, $5::timestamptz, 1, $6::timestamptz, $6::timestamptz)
on conflict (user_id) do nothing
returning user_id, plan, credits_remaining, reset_at, version, created_at, updated_at;
`

const QConsumeCredits = `--sql d4b77661-25ba-47f8-ad69-a2b0f5e37479
update entitlements
set credits_remaining = case when daily_limit < 0 then credits_remaining else credits_remaining - $2::int end,
    version = version + case when daily_limit < 0 then 0 else 1 end,
    updated_at = case when daily_limit < 0 then updated_at else $3::timestamptz end
where user_id = $1::text
  and (daily_limit < 0 or credits_remaining >= $2::int)
returning daily_limit, credits_remaining;
`

const QRestoreCredits = `--sql 8481cbb0-f945-4e8d-a097-64a544be58e1
update entitlements
set credits_remaining = case when daily_limit < 0 then credits_remaining else least(credits_remaining + $2::int, daily_limit) end,
    version = version + 1,
    updated_at = $3::timestamptz
where user_id = $1::text
returning daily_limit, credits_remaining;
`

const QResetDueEntitlements = `--sql ea99afbc-9156-405b-b49c-4b1da8ec465c
update entitlements
set credits_remaining = greatest(daily_limit, 0),
    reset_at = reset_at + interval '1 day',
    version = version + 1,
    updated_at = $1::timestamptz
where reset_at <= $1::timestamptz;
`

const QInsertEntitlementGrant = `--sql 36b92142-da6a-4356-9826-ea74048e19f8
insert into entitlement_grants (idempotency_key, user_id, plan, created_at)
values ($1::text, $2::text, $3::text, $4::timestamptz)
on conflict (idempotency_key) do nothing
returning idempotency_key;
`

const QApplyEntitlementPlan = `--sql 765f9afe-6035-4437-bb5c-949d473f7723
update entitlements
set plan = $2::text,
    daily_limit = $3::int,
    credits_remaining = $4::int,
    version = version + 1,
    updated_at = $5::timestamptz
where user_id = $1::text
returning user_id, plan, credits_remaining, reset_at, version, created_at, updated_at;
`
