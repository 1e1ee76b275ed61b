package sqlinline

const QInsertTransformation = `--sql 3bbfe7df-faa2-48f9-b1dd-4cb83c95f5a8
insert into examples(id, clinic_id, before_image_url, after_image_url)
values ($1::uuid, $2::uuid, $3, $4)
returning created_at;
`

const QListTransformationsByClinic = `--sql 5f73b4ea-f616-4d4a-9ee3-935b33aefc33
select id, clinic_id, before_image_url, after_image_url, created_at
from examples
where clinic_id = $1::uuid
order by created_at desc
limit $2::int;
`
