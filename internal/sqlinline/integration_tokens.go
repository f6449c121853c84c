package sqlinline

const QSelectIntegrationToken = `--sql c4f9cb13-355f-40c4-bf2a-9bf8d84c9bca
select btrim(token)
from integration_tokens
where provider = lower($1::text)
  and btrim(token) <> '';
`

const QUpsertIntegrationToken = `--sql 6bd9f90c-4411-434e-8fc4-4138eea90f3b
insert into integration_tokens (provider, token, properties)
values (lower($1::text), $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update
set token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
