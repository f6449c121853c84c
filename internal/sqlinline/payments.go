package sqlinline

const QInsertPayment = `--sql f073ff93-06ce-4dfb-a795-c93f03d0fbbd
insert into payments (
    id, user_id, requested_plan, amount, slip_reference, whatsapp_contact, supporting_text, status, created_at
)
values ($1::uuid, $2::text, $3::text, $4::bigint, $5::text, $6::text, $7::text, $8::text, $9::timestamptz);
`

const QSelectPayment = `--sql 8785a10e-38c4-4c29-8b48-15e19e193d8e
select id::text, user_id, requested_plan, amount, slip_reference, whatsapp_contact, supporting_text, status,
       verification_confidence, verification_reason, verified_by, decided_by, created_at, verified_at, decided_at
from payments
where id = $1::uuid;
`

const QSelectPaymentForUpdate = `--sql f507f92a-75a1-4db4-a94d-6671f84b7075
select id::text, user_id, requested_plan, amount, slip_reference, whatsapp_contact, supporting_text, status,
       verification_confidence, verification_reason, verified_by, decided_by, created_at, verified_at, decided_at
from payments
where id = $1::uuid
for update;
`

const QUpdatePayment = `--sql be291f8d-cacb-4a1d-8477-d31de63a186d
update payments
set supporting_text = $2::text,
    status = $3::text,
    verification_confidence = $4::int,
    verification_reason = $5::text,
    verified_by = $6::text,
    decided_by = $7::text,
    verified_at = $8::timestamptz,
    decided_at = $9::timestamptz
where id = $1::uuid;
`

const QListPayments = `--sql 8fca395f-9b7e-48cf-9e89-4902d1e0030b
select id::text, user_id, requested_plan, amount, slip_reference, whatsapp_contact, supporting_text, status,
       verification_confidence, verification_reason, verified_by, decided_by, created_at, verified_at, decided_at
from payments
where ($1::text = '' or user_id = $1::text)
  and ($2::text = '' or status = $2::text)
order by created_at desc, id desc
limit $3::int;
`

const QClaimPaymentsForVerification = `--sql 830184ec-3347-42c8-bbfd-83d3430d06b3
with next_payments as (
    select id
    from payments
    where status = 'pending'
      and supporting_text <> ''
      and verified_at is null
      and (verify_claimed_until is null or verify_claimed_until <= $2::timestamptz)
    order by created_at asc
    for update skip locked
    limit $1::int
)
update payments p
set verify_claimed_until = $2::timestamptz + ($3::int * interval '1 second')
from next_payments n
where p.id = n.id
returning p.id::text, p.user_id, p.requested_plan, p.amount, p.slip_reference, p.whatsapp_contact, p.supporting_text, p.status,
          p.verification_confidence, p.verification_reason, p.verified_by, p.decided_by, p.created_at, p.verified_at, p.decided_at;
`
